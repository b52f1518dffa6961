// Package store provides the SQLite-backed session journal.
//
// Each engine lifetime is a session. The journal holds what the engine's Run
// loop processed, one table per entry kind:
//   - sessions: grid and settings the session started with
//   - flashes: accepted flash events
//   - triggers: threshold crossings and their decoder outcome
//   - decodes: decoded symbols
//   - resets: selection resets and their reason
//
// All tables are keyed by (session_id, seq), where seq is the engine's
// logical clock. Reads order by seq, never by wall time, so ReplaySession
// returns entries in exactly the order the engine processed them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
