// Package engine implements the lazy prop evaluator.
//
// ARCHITECTURE:
//
// Pull-based resolution:
// Resolve(slot) returns a cached value when the slot's cell is Fresh.
// Otherwise it compiles the slot's dependencies (once per structure),
// resolves each dependency recursively, hands the values to the prop's
// updater and caches the result. Recursion depth equals graph depth.
//
// Staleness:
// Every cell read during a calculation is recorded in an inverse index.
// MarkStale walks that index and marks dependents stale; nothing is
// recomputed until the next Resolve. A stale slot whose dependencies all
// report "unchanged" (via per-slot cell views) is restored without calling
// its updater, and a recalculation that yields an equal value restores the
// previous change counter so downstream views see no change.
//
// Inversion:
// RequestUpdates plans first: each requested value is inverted through the
// prop's updater, recursing into prop dependencies and forwarding shadow
// dependencies untouched, until only essential data writes remain. Only
// then are the writes applied and their dependents marked stale. An update
// that cannot be inverted aborts the batch with no mutation.
//
// CRITICAL PATTERNS:
//
// Single writer:
// The engine is not safe for concurrent use. A document owns one engine
// and calls it synchronously.
//
// Deterministic ordering:
// Dependencies are gathered in instruction order and staleness propagates
// in sorted slot order. No map iteration order leaks into results.
package engine
