package graphql

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/classify"
	"github.com/MrEthical07/goSession/internal/devapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func newDevServer(t *testing.T) (*devapi.Server, *Client) {
	t.Helper()
	api, err := devapi.New(devapi.Config{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return api, c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestLoginRefreshMe(t *testing.T) {
	api, c := newDevServer(t)
	_, err := api.Seed("Ada", "ada@example.com", "correct horse", "admin")
	require.NoError(t, err)
	ctx := context.Background()

	payload, err := c.Login(ctx, goSession.Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NotNil(t, payload.User)
	assert.Equal(t, "admin", payload.User.Role)
	assert.True(t, payload.Tokens.Valid())

	pair, err := c.Refresh(ctx, payload.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, payload.Tokens.RefreshToken, pair.RefreshToken)

	user, err := c.Me(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, payload.User.ID, user.ID)

	anon, err := c.Me(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, anon)
}

func TestLoginErrorIsVerbatim(t *testing.T) {
	_, c := newDevServer(t)

	_, err := c.Login(context.Background(), goSession.Credentials{Email: "nobody@example.com", Password: "whatever1"})
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())

	var resErr *ResponseError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, devapi.CodeBadUserInput, resErr.Code())

	var list gqlerror.List
	assert.ErrorAs(t, err, &list)
	assert.False(t, classify.IsAuthError(err))
}

func TestMeInvalidTokenClassifiesAsAuth(t *testing.T) {
	_, c := newDevServer(t)

	_, err := c.Me(context.Background(), "not-a-jwt")
	require.Error(t, err)
	assert.Equal(t, "Invalid token", err.Error())
	assert.True(t, classify.IsAuthError(err))
}

func TestHTTPErrorWithoutGraphQLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithHeader("X-Test", "yes"))
	require.NoError(t, err)

	_, err = c.Me(context.Background(), "tok")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "graphql: 401 Unauthorized", err.Error())
	assert.True(t, classify.IsAuthError(err))
}

func TestTransportFailureClassifies(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "r")
	require.Error(t, err)
	assert.Equal(t, classify.KindTransport, classify.Classify(err).Kind)
}

func TestEngineGuardAgainstDevAPI(t *testing.T) {
	api, c := newDevServer(t)
	u, err := api.Seed("Ada", "ada@example.com", "correct horse", "admin")
	require.NoError(t, err)
	pair, err := api.IssuePair(u.ID)
	require.NoError(t, err)

	engine, err := goSession.New().WithAPI(c).Build()
	require.NoError(t, err)
	defer engine.Close()

	jar := goSession.NewMemoryCookieJar(map[string]string{
		"accessToken":  "garbage",
		"refreshToken": pair.RefreshToken,
	})
	res := engine.CheckAuth(context.Background(), jar)
	require.True(t, res.Authenticated, "outcome %s err %v", res.Outcome, res.Err)
	assert.True(t, res.Refreshed)
	assert.Equal(t, u.ID, res.User.ID)
	assert.EqualValues(t, 1, api.RefreshCalls())

	replay := engine.CheckAuth(context.Background(), goSession.NewMemoryCookieJar(map[string]string{
		"refreshToken": pair.RefreshToken,
	}))
	assert.False(t, replay.Authenticated)
	assert.Equal(t, goSession.GuardRefreshFailed, replay.Outcome)
}
