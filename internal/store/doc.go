// Package store provides SQLite-backed storage for attribute objects.
//
// The store is the durable end of a write path: it implements
// guard.AttributeWriter[Handle] so a guard can be stacked in front of it.
// Only attribute values are persisted. Write-once lock state lives in the
// guard's in-memory ledger and is never written here, so a reopened store
// starts every attribute UNSET.
//
// # Tables
//
//   - objects: one row per object (UUIDv7 id, kind)
//   - attributes: current value per (object, name) as canonical JSON, plus
//     the number of writes the attribute has received
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All queries that return several rows order by rowid or name so results
// are stable.
package store
