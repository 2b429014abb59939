// Package refresh exchanges refresh tokens for new token pairs with single-flight
// deduplication.
//
// # Single flight
//
// While an exchange is in progress, every further caller for the same slot waits for
// that exchange and receives the identical result: the same *session.TokenPair, or nil
// on failure. The slot is released as soon as the exchange settles, so the next caller
// starts a fresh attempt. [ScopeProcess] uses one slot for the whole process (a client
// holds exactly one session); [ScopeToken] uses one slot per refresh token so that
// concurrent requests from different users on a server never share a result.
//
// # Failure semantics
//
// A failed exchange is terminal for that refresh token: the token store is cleared and
// nil is returned. There is no retry loop.
//
// # What this package must NOT do
//
//   - Import goSession, client or graphql.
//   - Return raw API errors to callers (failures become nil).
//   - Retry a rejected exchange.
package refresh
