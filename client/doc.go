// Package client owns the in-memory session of one client context (a browser tab,
// a CLI, a desktop shell).
//
// A [Controller] wraps a client goSession.Engine. It turns login, registration,
// logout and refresh into [goSession.State] transitions, tags every asynchronous
// operation with a generation number and drops results from superseded
// generations. [Controller.Watch] keeps several contexts that share one token
// storage in agreement.
//
// # What this package must NOT do
//
//   - Read request cookies. Server code uses Engine.CheckAuth.
//   - Mutate State outside the Controller. Subscribers receive copies.
package client
