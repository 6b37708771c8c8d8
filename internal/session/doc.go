// Package session holds the ordering session state for a logical connection.
//
// A Store carries the backend session id, the auth token and phone number
// obtained through OTP verification, and the most recent menu search
// results. Every mutation writes the full Snapshot through a Persister.
// Persist failures are logged and swallowed: the in-memory state stays
// authoritative.
//
// Persisters:
//
//   - FilePersister: a JSON file, written atomically
//   - SQLitePersister: a sessions table keyed by store key
//   - RedisPersister: one string key per store, with optional TTL
//
// A Manager hands out Stores. In shared mode every connection uses the same
// store, which is the single-tenant behavior. In per-connection mode each
// MCP session id gets its own store, held until the MCP server releases it
// on DELETE or when the session idles out (server.session_idle_ttl).
package session
