// Package config loads the legacyid configuration file: which counter store
// to use and which sequences to provision.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/legacyid/internal/sequence"
)

//go:embed schema.cue
var schemaCUE string

// Config is the parsed configuration file.
type Config struct {
	Store     StoreConfig      `yaml:"store" json:"store"`
	Sequences []SequenceConfig `yaml:"sequences" json:"sequences"`
}

// StoreConfig selects the counter store.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "sqlite" | "mysql"
	DSN    string `yaml:"dsn" json:"dsn"`
}

// SequenceConfig is the seed for one counter row.
type SequenceConfig struct {
	Name      string `yaml:"name" json:"name"`
	Start     int64  `yaml:"start" json:"start"`
	BlockSize int64  `yaml:"block_size" json:"block_size"`
}

// Counter converts the seed to a counter row.
func (s SequenceConfig) Counter() sequence.Counter {
	return sequence.Counter{
		Name:           s.Name,
		NextBlockStart: s.Start,
		BlockSize:      s.BlockSize,
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store:     StoreConfig{Driver: "sqlite", DSN: "legacyid.db"},
		Sequences: []SequenceConfig{},
	}
}

// Load reads and validates a YAML configuration file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or violates the schema.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// NormalizeName puts a sequence name in NFC so that names that render the
// same map to the same counter row.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

func (c *Config) normalize() {
	for i := range c.Sequences {
		c.Sequences[i].Name = NormalizeName(c.Sequences[i].Name)
	}
}

// Validate checks the configuration against the embedded CUE schema and
// rejects duplicate sequence names.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	encoded := *c
	if encoded.Sequences == nil {
		encoded.Sequences = []SequenceConfig{}
	}
	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(encoded))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", errors.Details(err, nil))
	}

	seen := make(map[string]bool, len(c.Sequences))
	for _, s := range c.Sequences {
		if seen[s.Name] {
			return fmt.Errorf("duplicate sequence %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Sequence returns the seed for name.
func (c *Config) Sequence(name string) (SequenceConfig, bool) {
	name = NormalizeName(name)
	for _, s := range c.Sequences {
		if s.Name == name {
			return s, true
		}
	}
	return SequenceConfig{}, false
}
