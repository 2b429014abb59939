package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func TestClassifyAuthPatterns(t *testing.T) {
	cases := []string{
		"Invalid token",
		"invalid_token",
		"Token expired",
		"jwt expired",
		"The token has expired",
		"Expired token supplied",
		"401 Unauthorized",
		"UNAUTHENTICATED",
		"Authentication failed: bad signature",
		"Context creation failed: token could not be decoded",
	}
	for _, msg := range cases {
		t.Run(msg, func(t *testing.T) {
			res := Classify(errors.New(msg))
			assert.True(t, res.IsAuthError)
			assert.Equal(t, KindAuthExpired, res.Kind)
		})
	}
}

func TestClassifyNonAuth(t *testing.T) {
	cases := []error{
		errors.New("connection refused"),
		errors.New("malformed response body"),
		errors.New("Context creation failed: database offline"),
		errors.New(""),
	}
	for _, err := range cases {
		res := Classify(err)
		assert.False(t, res.IsAuthError, "%q", err.Error())
	}
	assert.Equal(t, Result{Kind: KindNone}, Classify(nil))
}

func TestClassifyTransportBeforePatterns(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	wrapped := &url.Error{Op: "Post", URL: "http://api/graphql?token=invalid-token", Err: dial}

	res := Classify(wrapped)
	assert.False(t, res.IsAuthError)
	assert.Equal(t, KindTransport, res.Kind)

	res = Classify(fmt.Errorf("me: %w", context.DeadlineExceeded))
	assert.Equal(t, KindTransport, res.Kind)
}

func TestClassifyGraphQLExtensionCodes(t *testing.T) {
	authErr := gqlerror.List{{
		Message:    "you shall not pass",
		Extensions: map[string]interface{}{"code": "UNAUTHENTICATED"},
	}}
	res := Classify(fmt.Errorf("me: %w", authErr))
	assert.True(t, res.IsAuthError)

	inputErr := gqlerror.List{{
		Message:    "email already registered",
		Extensions: map[string]interface{}{"code": "BAD_USER_INPUT"},
	}}
	res = Classify(inputErr)
	assert.False(t, res.IsAuthError)
	assert.Equal(t, KindValidation, res.Kind)

	plain := gqlerror.List{{Message: "Invalid credentials"}}
	res = Classify(plain)
	assert.False(t, res.IsAuthError)
	assert.Equal(t, KindValidation, res.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
