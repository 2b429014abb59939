// Package middleware adapts goSession.Engine to net/http.
//
// # Handlers
//
//   - [RequireSession] runs the cookie guard and redirects anonymous requests to the
//     login path.
//   - [RequireRole] answers 403 for an authenticated user with a different role.
//   - [Logging] assigns request ids and logs one line per request with log/slog.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every authentication
// decision is made by Engine.CheckAuth; this package only acts on its result.
//
// # What this package must NOT do
//
//   - Call the GraphQL API directly.
//   - Read or write the token store.
//   - Log cookie or token values.
package middleware
