// Package harness provides end-to-end conformance testing for the
// pricing engine.
//
// The harness loads YAML scenarios, executes their steps against a real
// SQLite store and a fully wired engine, and validates step results and
// final rule state. Each run produces a trace that is compared against
// a golden file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	start_at: "2026-12-01"
//	ids: [rule-gala, ov-crisis]
//	steps:
//	  - op: create_event
//	    id: ev-gala
//	    title: "Royal Gala"
//	    category: national-holiday
//	    start: "2026-12-05"
//	    end: "2026-12-07"
//	    action: { kind: increase-percent, percent: 20 }
//	    expect: { priority: 11 }
//	  - op: sweep
//	assertions:
//	  - type: rule_state
//	    rule: rule-gala
//	    expect: { active: true }
//
// # Steps
//
// Supported ops: seed_rule, seed_event, create_event, create_override,
// remove_override, list_overrides, check, sweep, advance. Each step may
// carry an expect map that is subset-matched against the step's result.
//
// # Deterministic Testing
//
// Scenarios run with a frozen clock (start_at, moved only by advance
// steps) and a fixed id sequence (ids), over a throwaway SQLite
// database. Identical runs produce identical traces, which makes golden
// comparison possible.
package harness
