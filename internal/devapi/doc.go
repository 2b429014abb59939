// Package devapi is an in-memory GraphQL API implementing the four session
// operations (login, register, refreshToken, me). The demo binary, the load test
// and the graphql client tests run against it.
//
// Access tokens are HS256 JWTs; refresh tokens are random ids rotated on every
// exchange; passwords are stored as argon2id PHC strings.
package devapi
