// Package graphql implements goSession.API against a GraphQL endpoint over HTTP.
//
// Requests are POSTed as {"query", "variables"}. The access token, when one is
// needed, travels in the Authorization header as a bearer token. Errors in the
// response body are decoded into a gqlerror.List and returned as *ResponseError,
// whose message is the API's own text. A non-2xx status without GraphQL errors
// becomes *HTTPError.
package graphql
