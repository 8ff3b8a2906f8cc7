// Package kv provides the persistent key-value collaborator behind every
// tatasbox state store.
//
// # Overview
//
// State stores (profile, goals, journal, preferences) serialize their whole
// state to a JSON blob under one fixed key. The blob lives in a Store, which
// partitions keys by namespace; the gateway uses the authenticated device id
// as the namespace, so each device sees an isolated key space through a
// Bucket.
//
// # Backends
//
//   - SQLiteStore: default, pure Go (modernc.org/sqlite)
//   - NewSQLite3Store: same schema on the cgo driver (mattn/go-sqlite3)
//   - PostgresStore: lib/pq
//   - RedisStore: one hash per namespace (go-redis)
//   - FileStore: one JSON document per namespace, atomic rename on write
//   - MemoryStore: in-process map for tests
//
// Sealed wraps any backend and encrypts values at rest with
// XChaCha20-Poly1305 under a per-namespace key derived with HKDF.
//
// # Write ordering
//
// Stores apply mutations to memory first and hand the persisted write to a
// Queue. A Queue runs writes one at a time in submission order, so two
// quick mutations can never land out of order. Enqueue returns a *Write the
// caller may wait on or ignore; failures are always logged and counted.
package kv
