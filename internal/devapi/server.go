package devapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/session"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Error codes placed in extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeConflict        = "CONFLICT"
	CodeParseFailed     = "GRAPHQL_PARSE_FAILED"
	CodeUnknownField    = "GRAPHQL_VALIDATION_FAILED"
)

// Config configures a Server. Zero durations take the defaults.
type Config struct {
	Secret       []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Issuer       string
	RefreshDelay time.Duration
	Clock        func() time.Time
}

type account struct {
	user session.User
	hash string
}

type refreshGrant struct {
	userID    string
	expiresAt time.Time
}

// Server answers GraphQL POST requests. It is safe for concurrent use.
type Server struct {
	tokens       *tokenIssuer
	hasher       hasher
	refreshTTL   time.Duration
	refreshDelay time.Duration
	now          func() time.Time

	mu      sync.Mutex
	users   map[string]*account
	byEmail map[string]string
	grants  map[string]refreshGrant

	refreshCalls atomic.Int64
	meCalls      atomic.Int64
}

// New returns an empty server.
func New(cfg Config) (*Server, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "gosession-devapi"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RefreshDelay < 0 {
		return nil, errors.New("refresh delay must be >= 0")
	}

	tokens, err := newTokenIssuer(cfg.Secret, cfg.AccessTTL, cfg.Issuer, cfg.Clock)
	if err != nil {
		return nil, err
	}

	return &Server{
		tokens:       tokens,
		hasher:       defaultHasher(),
		refreshTTL:   cfg.RefreshTTL,
		refreshDelay: cfg.RefreshDelay,
		now:          cfg.Clock,
		users:        make(map[string]*account),
		byEmail:      make(map[string]string),
		grants:       make(map[string]refreshGrant),
	}, nil
}

// RefreshCalls reports how many refreshToken mutations were served.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// MeCalls reports how many me queries were served.
func (s *Server) MeCalls() int64 { return s.meCalls.Load() }

// Seed creates an account directly and returns its user.
func (s *Server) Seed(name, email, password, role string) (*session.User, error) {
	payload, gqlErr := s.register(session.Registration{Name: name, Email: email, Password: password}, role)
	if gqlErr != nil {
		return nil, gqlErr
	}
	return payload.User, nil
}

// IssuePair mints a token pair for an existing user without a password check.
func (s *Server) IssuePair(userID string) (*session.TokenPair, error) {
	s.mu.Lock()
	acc, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("unknown user")
	}
	return s.issuePair(acc.user)
}

// RevokeRefresh forgets every refresh grant of userID.
func (s *Server) RevokeRefresh(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, g := range s.grants {
		if g.userID == userID {
			delete(s.grants, tok)
		}
	}
}

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors gqlerror.List  `json:"errors,omitempty"`
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req gqlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gqlResponse{Errors: gqlerror.List{codedError("Malformed request body", CodeParseFailed)}})
		return
	}

	field, err := s.resolveField(req)
	if err != nil {
		writeJSON(w, http.StatusOK, gqlResponse{Errors: gqlerror.List{err}})
		return
	}

	args := make(map[string]any, len(field.Arguments))
	for _, arg := range field.Arguments {
		v, valErr := arg.Value.Value(req.Variables)
		if valErr != nil {
			writeJSON(w, http.StatusOK, gqlResponse{Errors: gqlerror.List{codedError(valErr.Error(), CodeBadUserInput)}})
			return
		}
		args[arg.Name] = v
	}

	result, gqlErr := s.execute(r.Context(), field.Name, args, bearer(r))
	key := field.Alias
	if key == "" {
		key = field.Name
	}
	if gqlErr != nil {
		gqlErr.Path = ast.Path{ast.PathName(key)}
		writeJSON(w, http.StatusOK, gqlResponse{Data: map[string]any{key: nil}, Errors: gqlerror.List{gqlErr}})
		return
	}
	writeJSON(w, http.StatusOK, gqlResponse{Data: map[string]any{key: result}})
}

func (s *Server) resolveField(req gqlRequest) (*ast.Field, *gqlerror.Error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "request", Input: req.Query})
	if err != nil {
		var parsed *gqlerror.Error
		if errors.As(err, &parsed) {
			parsed.Extensions = map[string]any{"code": CodeParseFailed}
			return nil, parsed
		}
		return nil, codedError(err.Error(), CodeParseFailed)
	}

	var op *ast.OperationDefinition
	if req.OperationName != "" {
		op = doc.Operations.ForName(req.OperationName)
	} else if len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	if op == nil {
		return nil, codedError("Unknown operation", CodeUnknownField)
	}

	for _, sel := range op.SelectionSet {
		if f, ok := sel.(*ast.Field); ok {
			return f, nil
		}
	}
	return nil, codedError("Operation selects no field", CodeUnknownField)
}

func (s *Server) execute(ctx context.Context, name string, args map[string]any, token string) (any, *gqlerror.Error) {
	switch name {
	case "login":
		var in session.Credentials
		if err := decodeArg(args["input"], &in); err != nil {
			return nil, err
		}
		return s.login(in)
	case "register":
		var in session.Registration
		if err := decodeArg(args["input"], &in); err != nil {
			return nil, err
		}
		return s.register(in, "user")
	case "refreshToken":
		rt, _ := args["refreshToken"].(string)
		return s.refresh(ctx, rt)
	case "me":
		return s.me(token)
	default:
		return nil, codedError("Cannot query field \""+name+"\"", CodeUnknownField)
	}
}

func (s *Server) login(in session.Credentials) (*session.AuthPayload, *gqlerror.Error) {
	email := normalizeEmail(in.Email)
	s.mu.Lock()
	id, ok := s.byEmail[email]
	var acc *account
	if ok {
		acc = s.users[id]
	}
	s.mu.Unlock()

	if acc == nil || !s.hasher.verify(in.Password, acc.hash) {
		return nil, codedError("Invalid email or password", CodeBadUserInput)
	}
	if !acc.user.IsActive {
		return nil, codedError("Account is disabled", CodeBadUserInput)
	}
	return s.payload(acc.user)
}

func (s *Server) register(in session.Registration, role string) (*session.AuthPayload, *gqlerror.Error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, codedError("Email is invalid", CodeBadUserInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, codedError("Name is required", CodeBadUserInput)
	}
	hash, err := s.hasher.hash(in.Password)
	if err != nil {
		return nil, codedError(err.Error(), CodeBadUserInput)
	}

	now := s.now().UTC()
	user := session.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name),
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	if _, exists := s.byEmail[email]; exists {
		s.mu.Unlock()
		return nil, codedError("Email already registered", CodeConflict)
	}
	s.users[user.ID] = &account{user: user, hash: hash}
	s.byEmail[email] = user.ID
	s.mu.Unlock()

	return s.payload(user)
}

func (s *Server) refresh(ctx context.Context, token string) (*session.TokenPair, *gqlerror.Error) {
	s.refreshCalls.Add(1)
	if s.refreshDelay > 0 {
		select {
		case <-time.After(s.refreshDelay):
		case <-ctx.Done():
			return nil, codedError("Request cancelled", CodeUnauthenticated)
		}
	}

	s.mu.Lock()
	grant, ok := s.grants[token]
	if ok {
		delete(s.grants, token)
	}
	acc := s.users[grant.userID]
	s.mu.Unlock()

	if !ok || acc == nil || !s.now().Before(grant.expiresAt) {
		return nil, codedError("Invalid refresh token", CodeUnauthenticated)
	}
	pair, err := s.issuePair(acc.user)
	if err != nil {
		return nil, codedError(err.Error(), CodeUnauthenticated)
	}
	return pair, nil
}

func (s *Server) me(token string) (*session.User, *gqlerror.Error) {
	s.meCalls.Add(1)
	if token == "" {
		return nil, nil
	}
	claims, err := s.tokens.parse(token)
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return nil, codedError("Token expired", CodeUnauthenticated)
		}
		return nil, codedError("Invalid token", CodeUnauthenticated)
	}

	s.mu.Lock()
	acc, ok := s.users[claims.UID]
	s.mu.Unlock()
	if !ok || !acc.user.IsActive {
		return nil, nil
	}
	u := acc.user
	return &u, nil
}

func (s *Server) payload(user session.User) (*session.AuthPayload, *gqlerror.Error) {
	pair, err := s.issuePair(user)
	if err != nil {
		return nil, codedError(err.Error(), CodeUnauthenticated)
	}
	return &session.AuthPayload{User: &user, Tokens: *pair}, nil
}

func (s *Server) issuePair(user session.User) (*session.TokenPair, error) {
	access, err := s.tokens.issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.grants[refresh] = refreshGrant{userID: user.ID, expiresAt: s.now().Add(s.refreshTTL)}
	s.mu.Unlock()

	return &session.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.expiresIn(),
	}, nil
}

func decodeArg(v any, out any) *gqlerror.Error {
	if v == nil {
		return codedError("Missing input", CodeBadUserInput)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return codedError("Malformed input", CodeBadUserInput)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return codedError("Malformed input", CodeBadUserInput)
	}
	return nil
}

func codedError(msg, code string) *gqlerror.Error {
	return &gqlerror.Error{Message: msg, Extensions: map[string]any{"code": code}}
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
