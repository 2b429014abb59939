// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow function accepts a typed dependency struct and returns a result
// without side-effects beyond those dependencies. RunGuard implements the
// per-request verify, refresh, re-verify chain used by Engine.CheckAuth.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the API collaborator, the refresh
// coordinator and the error classifier. They do NOT own any of these
// resources; ownership stays with the Engine. Cookie reads and writes happen
// in the root package.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
