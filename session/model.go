package session

import "time"

// User is the identity returned by the API. The session core treats it as an
// opaque value object; only Role is ever compared.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRole reports whether u carries role. A nil user has no role.
func (u *User) HasRole(role string) bool {
	return u != nil && role != "" && u.Role == role
}

// TokenPair is the credential pair issued by login, register and refresh.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Valid reports whether both tokens are present.
func (p *TokenPair) Valid() bool {
	return p != nil && p.AccessToken != "" && p.RefreshToken != ""
}

// Record is the durable form of a TokenPair. ExpiresAt is epoch milliseconds,
// computed when the pair was written.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// State is the read-only view of a client session.
//
// IsAuthenticated is true if and only if User is non-nil.
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	IsInitialized   bool
}

// Anonymous returns the signed-out state with the given initialization flag.
func Anonymous(initialized bool) State {
	return State{IsInitialized: initialized}
}

// Authenticated returns the signed-in state for u.
func Authenticated(u *User) State {
	if u == nil {
		return Anonymous(true)
	}
	return State{User: u, IsAuthenticated: true, IsInitialized: true}
}

// Credentials is the login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register input.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthPayload is returned by login and register.
type AuthPayload struct {
	User   *User     `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
