// Package harness runs speller scenarios against the real engine.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: decode_single_symbol
//	description: "Row then column decodes one symbol"
//	threshold: 0.3        # optional, default 0.3
//	trigger: level        # optional, level or edge
//	log_window: 1         # optional
//	min_gap_ms: 0         # optional decoder trigger gap
//	step_ms: 10           # optional clock advance per reading
//	grid:                 # optional, default 5x6 reference grid
//	  - [A, B]
//	  - [C, D]
//	steps:
//	  - do: start
//	  - do: flash
//	    axis: row
//	    index: 2
//	  - do: sample
//	    value: 0.9
//	expect:
//	  symbols: [P]
//	  text: "P"
//	  state: EMPTY
//
// # Step Kinds
//
//   - start, stop: start or stop flashing
//   - reset: clear the pending selection
//   - flash: queue one scripted pick and tick the scheduler
//   - tick: tick the scheduler with no scripted pick (falls back to row 0)
//   - sample: offer one probability to the attached source
//   - wait: advance the clock by ms milliseconds
//   - lost: end the probability stream
//   - attach, detach: reconnect or disconnect the probability source
//
// # Deterministic Execution
//
// Every scenario runs with:
//   - A fixed session ID (the scenario name)
//   - A step clock (testutil.StepClock) in place of wall time
//   - A manual ticker, so flashes happen only on flash and tick steps
//   - An in-memory SQLite journal, replayed at the end to confirm the
//     recorded session decodes to the same symbols
//
// The loop is synchronised after every step, so each trace event reflects
// the engine state once that step has been fully processed. Identical
// scenarios produce byte-identical traces for golden comparison.
package harness
