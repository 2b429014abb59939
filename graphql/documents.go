package graphql

const userFields = `id name email role isActive createdAt updatedAt`

const tokenFields = `accessToken refreshToken expiresIn`

const loginDocument = `mutation Login($input: LoginInput!) {
  login(input: $input) {
    user { ` + userFields + ` }
    tokens { ` + tokenFields + ` }
  }
}`

const registerDocument = `mutation Register($input: RegisterInput!) {
  register(input: $input) {
    user { ` + userFields + ` }
    tokens { ` + tokenFields + ` }
  }
}`

const refreshDocument = `mutation RefreshToken($refreshToken: String!) {
  refreshToken(refreshToken: $refreshToken) { ` + tokenFields + ` }
}`

const meDocument = `query Me {
  me { ` + userFields + ` }
}`
