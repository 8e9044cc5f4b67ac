// Package harness runs scenario files against real documents.
//
// A scenario names a document, optionally seeds essential state, applies a
// list of steps and checks assertions on the result:
//
//	name: double_input
//	description: "double follows the input"
//	document: docs/double.yaml
//	steps:
//	  - dispatch: n
//	    action: updateValue
//	    args: {value: 5}
//	  - update: n
//	    prop: value
//	    value: 6
//	  - add: s
//	    content: [{number: "4"}]
//	  - delete: [a]
//	  - rebuild: true
//	assertions:
//	  - type: value
//	    component: double
//	    prop: value
//	    expect: 12
//
// # Steps
//
//   - dispatch: run a catalog action on a component
//   - update: write a prop directly, as an action would
//   - add: append authored content below a component
//   - delete: delete components and everything below them
//   - rebuild: save essential state to the store, rebuild the document
//     from the authored source and restore the saved state
//
// Each step records its outcome (applied, declined or error) and the
// renderer props that changed. A step fails the scenario unless its
// outcome matches expect, which defaults to applied.
//
// # Assertion Types
//
//   - value: a resolved prop equals expect
//   - render: a rendered component's props contain expect
//   - build_error: a build error with code (and component, if given) exists
//   - no_build_errors: the document built cleanly
//   - state: the essential state equals expect
//   - reference: ref resolves to component (and prop, if given)
//
// Values compare by canonical JSON, so 5 and 5.0 are equal.
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with
// sequential row IDs, so the trace and the golden snapshot are
// byte-identical across runs.
package harness
