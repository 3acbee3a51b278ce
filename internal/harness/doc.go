// Package harness runs write scenarios against a guard policy.
//
// A scenario names a CUE policy, declares objects by reference, and lists
// attribute writes with the outcome each one must have. Every run uses a
// fresh object space and a deterministic clock, so the resulting trace is
// byte-stable and can be compared with a golden file.
//
// # Backends
//
//   - store: an in-memory SQLite store with sequential object ids, guarded
//     by a policy router (the default)
//   - memory: one object class per kind whose instance lock is the kind's
//     rule
//
// Both backends produce the same trace for the same scenario.
//
// # Scenario Format
//
//	name: account_write_once
//	description: "data and id are write-once, name is free"
//	policy: account.cue
//	objects:
//	  - ref: a
//	    kind: Account
//	steps:
//	  - set: a
//	    attr: data
//	    value: x
//	    expect: ok
//	  - set: a
//	    attr: data
//	    value: y
//	    expect: protected
//	assertions:
//	  - type: final_value
//	    object: a
//	    attr: data
//	    value: x
//
// # Outcomes
//
//   - ok: the write reached the object
//   - protected: the guard rejected the write with ProtectedAttributeError
//   - error: the write failed for another reason (bad value, missing object)
//
// # Assertion Types
//
//   - final_value: the stored value of object.attr equals value
//   - unset: object.attr was never stored
//   - write_count: object.attr received exactly count successful writes
//   - locked: the guard reports object.attr as locked (or not, with locked: false)
package harness
