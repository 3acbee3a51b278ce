// Package guard implements write-once protection for named attributes.
//
// A Guard decorates an AttributeWriter. Every write request is inspected
// before it reaches the wrapped writer:
//
//   - names outside the protected set are forwarded unconditionally
//   - the first write of a protected name is forwarded and then recorded
//   - any later write of a recorded name fails with *ProtectedAttributeError
//
// An empty protected set means every name is protected.
//
// STATE MACHINE:
//
// Each (target, name) pair starts UNSET. A successful write moves it to SET,
// and SET is permanent for the lifetime of the target. A write that the
// wrapped writer rejects leaves the pair UNSET.
//
// LEDGER:
//
// The record of written names lives in a side table owned by the Guard, not
// on the target. With ScopeInstance the table is keyed by a weak pointer to
// the target and an entry is dropped once its target is garbage collected.
// With ScopeClass a single table is shared by every target the Guard sees,
// which mirrors attaching the lock to a class rather than to its instances.
//
// CONCURRENCY:
//
// The ledger map itself is mutex protected because cleanups run on the
// runtime's cleanup goroutine. The check-write-record sequence is NOT atomic:
// two goroutines racing on the same unset name may both reach the wrapped
// writer. Callers that share a target across goroutines must serialize writes.
package guard
