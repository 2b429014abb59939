package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const maxResponseBytes = 1 << 20

// Client calls the session operations of a GraphQL API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// NewClient returns a client for endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("graphql: endpoint is required")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ goSession.API = (*Client)(nil)

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors"`
}

// Login runs the login mutation.
func (c *Client) Login(ctx context.Context, creds goSession.Credentials) (*goSession.AuthPayload, error) {
	var out struct {
		Login *goSession.AuthPayload `json:"login"`
	}
	vars := map[string]any{"input": creds}
	if err := c.Do(ctx, "Login", loginDocument, vars, "", &out); err != nil {
		return nil, err
	}
	return out.Login, nil
}

// Register runs the register mutation.
func (c *Client) Register(ctx context.Context, reg goSession.Registration) (*goSession.AuthPayload, error) {
	var out struct {
		Register *goSession.AuthPayload `json:"register"`
	}
	vars := map[string]any{"input": reg}
	if err := c.Do(ctx, "Register", registerDocument, vars, "", &out); err != nil {
		return nil, err
	}
	return out.Register, nil
}

// Refresh exchanges refreshToken for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*goSession.TokenPair, error) {
	var out struct {
		RefreshToken *goSession.TokenPair `json:"refreshToken"`
	}
	vars := map[string]any{"refreshToken": refreshToken}
	if err := c.Do(ctx, "RefreshToken", refreshDocument, vars, "", &out); err != nil {
		return nil, err
	}
	return out.RefreshToken, nil
}

// Me returns the user behind accessToken. A null me field yields (nil, nil).
func (c *Client) Me(ctx context.Context, accessToken string) (*goSession.User, error) {
	var out struct {
		Me *goSession.User `json:"me"`
	}
	if err := c.Do(ctx, "Me", meDocument, nil, accessToken, &out); err != nil {
		return nil, err
	}
	return out.Me, nil
}

// Do posts one operation and decodes its data into out. bearer is sent as the
// Authorization header when non-empty.
func (c *Client) Do(ctx context.Context, operation, query string, vars map[string]any, bearer string, out any) error {
	body, err := json.Marshal(request{Query: query, OperationName: operation, Variables: vars})
	if err != nil {
		return fmt.Errorf("graphql: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("graphql: build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	var decoded response
	if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &HTTPError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("graphql: decode response: %w", jsonErr)
	}
	if len(decoded.Errors) > 0 {
		return &ResponseError{StatusCode: resp.StatusCode, Errors: decoded.Errors}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	if out == nil || len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("graphql: decode data: %w", err)
	}
	return nil
}
