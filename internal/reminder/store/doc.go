// Package store persists reminder delivery state.
//
// Three documents back the engine: sent records (authoritative dedup),
// scheduled markers (in-flight hints, advisory only) and message refs
// (channel posts we may edit or delete later). A fourth append-only log
// records undeliverable recipients.
//
// Backends:
//   - "file": dependency-free JSON documents with atomic rewrites
//   - "sqlite": SQLite database file (optional build tag)
package store
