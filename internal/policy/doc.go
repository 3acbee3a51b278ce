// Package policy loads write-once guard policies written in CUE.
//
// A policy declares, per object kind, which attributes are protected and
// where the ledger is attached:
//
//	guard: Account: {
//	    protect: ["id", "data"]
//	    scope:   "instance"
//	}
//
//	guard: Registry: {
//	    // protect omitted: every attribute is write-once
//	    scope: "class"
//	}
//
// Fields:
//   - protect: list of attribute names. Omitted or empty protects all names.
//   - scope: "instance" (default) or "class".
//
// Unknown fields are rejected so typos do not silently disable a lock.
package policy
