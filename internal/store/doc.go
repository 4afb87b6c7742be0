// Package store provides SQLite-backed durable storage for recorded runs
// and the diff, assertion and replay reports produced from them.
//
// The store keeps three tables:
//   - runs: one row per run, with its fingerprint and step count
//   - steps: the ordered steps of each run, keyed by (run_id, position)
//   - reports: an append-only log of diff/assert/replay outcomes
//
// # Patterns
//
// Idempotent writes: WriteRun is keyed by run id. Writing the same run twice
// is a no-op; writing different content under an existing id is rejected
// with ErrFingerprintConflict.
//
// Deterministic reads: every list query orders by seq (insertion order),
// then id COLLATE BINARY. Wall-clock columns are never used for ordering.
//
// Deterministic columns: input, output, metadata and the run maps are
// stored as sorted-key ASCII JSON, so identical runs produce identical
// rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
