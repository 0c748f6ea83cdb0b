package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/legacyid/internal/testutil"
)

// Scenario defines an allocator scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Counters are provisioned before the flow runs.
	Counters []CounterSetup `yaml:"counters"`

	// Flow is the ordered list of allocation steps.
	Flow []Step `yaml:"flow"`

	// Assertions validate issued ids and final counter rows.
	Assertions []Assertion `yaml:"assertions"`
}

// CounterSetup is a counter row provisioned before the flow.
type CounterSetup struct {
	Name      string `yaml:"name"`
	Start     int64  `yaml:"start"`
	BlockSize int64  `yaml:"block_size"`
}

// Step allocates ids from one allocator instance.
type Step struct {
	// Next is the sequence name to allocate from.
	Next string `yaml:"next"`

	// Instance labels the allocator instance. Steps sharing a label share
	// one allocator; distinct labels model separate processes.
	// Defaults to "default".
	Instance string `yaml:"instance,omitempty"`

	// Count is the number of ids to allocate. Defaults to 1.
	// Allocation stops at the first error.
	Count int `yaml:"count,omitempty"`

	// Fail injects a fault into the next store call of this kind
	// (begin, read, advance, commit) before the step runs.
	Fail string `yaml:"fail,omitempty"`

	// Resize replaces the block size of the counter row before the step runs.
	Resize int64 `yaml:"resize,omitempty"`

	// Expect validates the step outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// IDs are the exact ids the step must return, in order.
	IDs []int64 `yaml:"ids,omitempty"`

	// Error is the expected sequence.ErrorCode of the first failure.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final state after the flow.
type Assertion struct {
	// Type is one of final_state, unique_ids, issued_count, read_count.
	Type string `yaml:"type"`

	// Sequence scopes the assertion. Optional for unique_ids.
	Sequence string `yaml:"sequence,omitempty"`

	// NextBlockStart is the expected committed value (final_state).
	NextBlockStart int64 `yaml:"next_block_start,omitempty"`

	// Count is the expected number (issued_count, read_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState  = "final_state"
	AssertUniqueIDs   = "unique_ids"
	AssertIssuedCount = "issued_count"
	AssertReadCount   = "read_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, c := range s.Counters {
		if c.Name == "" {
			return fmt.Errorf("counters[%d]: name is required", i)
		}
		if c.Start < 1 {
			return fmt.Errorf("counters[%d]: start must be >= 1", i)
		}
	}

	for i, step := range s.Flow {
		if step.Next == "" {
			return fmt.Errorf("flow[%d]: next is required", i)
		}
		if step.Count < 0 {
			return fmt.Errorf("flow[%d]: count must be non-negative", i)
		}
		switch testutil.Op(step.Fail) {
		case "", testutil.OpBegin, testutil.OpRead, testutil.OpAdvance, testutil.OpCommit:
		default:
			return fmt.Errorf("flow[%d]: unknown fault %q", i, step.Fail)
		}
		if step.Resize < 0 {
			return fmt.Errorf("flow[%d]: resize must be positive", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalState:
		if a.Sequence == "" {
			return fmt.Errorf("assertions[%d]: sequence is required for final_state", index)
		}
		if a.NextBlockStart < 1 {
			return fmt.Errorf("assertions[%d]: next_block_start is required for final_state", index)
		}
	case AssertIssuedCount, AssertReadCount:
		if a.Sequence == "" {
			return fmt.Errorf("assertions[%d]: sequence is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertUniqueIDs:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
