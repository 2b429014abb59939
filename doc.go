// Package goSession manages the lifecycle of an access/refresh token session for a
// website backed by a GraphQL API, on both sides of the wire.
//
// A client [Engine] persists the token pair in a [session.Store] and renews it through
// a single-flight refresh coordinator; the client package builds a session controller
// on top of it. A server Engine keeps nothing between requests: [Engine.CheckAuth]
// derives the session from request cookies, refreshing and rewriting them when the
// access token has expired.
//
// Engine methods are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], the [API]
// collaborator contract and value types. Guard orchestration and audit dispatch live
// under internal/ and are never exported. Token storage, error classification and
// refresh coordination are standalone packages (session, classify, refresh) that do not
// import goSession.
//
// # What this package must NOT do
//
//   - Interpret tokens. They are opaque bearer strings issued by the API.
//   - Log or audit token values.
//   - Retry a rejected refresh exchange.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
