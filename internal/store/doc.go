// Package store provides SQLite-backed storage for evaluation runs.
//
// A run row records the model, split, seed and parameters of one evaluation
// together with its summary metrics once finished. Prediction rows hold the
// per-example outcomes keyed by (run_id, idx).
//
// # Identity and Time
//
//   - Run IDs are UUIDv7, so lexical order follows creation time
//   - Timestamps are stored as RFC 3339 text in UTC
//   - Both come from injectable generators so tests are deterministic
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The schema is embedded and versioned with PRAGMA user_version.
package store
