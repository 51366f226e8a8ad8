// Package harness provides conformance testing for ledgerql formulas.
//
// A scenario names a CUE catalog, compiles a list of formulas against it and
// checks the generated SQL or the error each formula produces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: ../catalog/ledger        # relative to the scenario file
//	clock: "2024-03-05"               # "today" for the C sentinel
//	default_ledger: A
//	steps:
//	  - formula: 'PK1,LA,F={P}0,K=D_C,O=/AMOUNT'
//	    params: [D]
//	    mode: summary
//	    expect:
//	      sql: |
//	        SELECT ...
//	      contains: ["LEFT OUTER JOIN"]
//	      connection: sunsystems
//	  - formula: 'PK1,LA,F=1'
//	    expect:
//	      error: formula
//
// # Expectations
//
//   - sql: the exact SQL text (a trailing newline is ignored)
//   - contains / excludes: substrings that must or must not appear
//   - connection: the table's connection identifier
//   - error: the error kind (formula, unknown_field, missing_document,
//     malformed_document, node_cycle, schema, no_target)
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store loaded from its
// catalog, with a fixed clock and a fixed request ID, so transcripts are
// byte-identical across runs and suitable for golden comparison.
package harness
