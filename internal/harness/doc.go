// Package harness runs allocator scenarios described in YAML.
//
// A scenario provisions counter rows in an in-memory store, drives one or
// more allocator instances through a flow of allocations (optionally
// injecting store faults before a step), and then checks the issued ids and
// the final counter rows.
//
// # Scenario Format
//
//	name: review_id_seq
//	description: "Block of five starting at 500"
//	counters:
//	  - name: review_id_seq
//	    start: 500
//	    block_size: 5
//	flow:
//	  - next: review_id_seq
//	    count: 6
//	    expect:
//	      ids: [500, 501, 502, 503, 504, 505]
//	  - next: review_id_seq
//	    instance: b
//	    fail: commit
//	    expect:
//	      error: TX_FAILED
//	assertions:
//	  - type: final_state
//	    sequence: review_id_seq
//	    next_block_start: 510
//	  - type: unique_ids
//
// # Assertion Types
//
//   - final_state: the committed next_block_start of a sequence
//   - unique_ids: no id was issued twice within a sequence
//   - issued_count: the number of ids issued for a sequence
//   - read_count: the number of counter reads made for a sequence
//
// Every scenario runs against a fresh testutil.FakeCounterStore, so results
// are deterministic and suitable for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/review_id_seq.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
