// Package session provides the token store and the session data model shared by the
// client controller, the refresh coordinator and the server guard.
//
// # Token store
//
// [Store] persists the access token, the refresh token and the computed expiry as one
// unit: the three keys are always written together and cleared together, so a partial
// record can never be observed. A record with any missing or unparsable field reads as
// absent.
//
// # Storage backends
//
// [MemoryStorage] behaves like browser storage: each [MemoryStorage.Tab] view sees the
// same keys, and writes made through one view are announced to watchers of every other
// view. [RedisStorage] keeps the keys in Redis, writes them inside MULTI/EXEC and
// announces changes over Pub/Sub so several client processes stay consistent.
//
// # Architecture boundaries
//
// This package owns persistence and the value types. It does NOT talk to the API,
// classify errors or decide when to refresh.
//
// # What this package must NOT do
//
//   - Import goSession, refresh, client or graphql (no upward imports).
//   - Write anything when the [Environment] is not a client.
//   - Log token values.
package session
