// Package store provides SQLite-backed durable storage for doccore
// documents and their essential state.
//
// Two tables are kept:
//   - documents: flat documents, content-addressed by ir.DocumentHash
//   - snapshots: essential-state records captured from a built document
//
// Snapshots are ordered by a per-document seq, never by wall time, so a
// restore picks the same snapshot on every machine. Every snapshot carries
// its ir.StateHash; LoadState recomputes it and refuses records that were
// altered behind the store's back.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
