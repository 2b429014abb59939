package graphql

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ResponseError carries the errors array of a GraphQL response.
type ResponseError struct {
	StatusCode int
	Errors     gqlerror.List
}

// Error returns the API messages unchanged, joined with "; " when there are several.
func (e *ResponseError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "graphql: empty error list"
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		if item == nil {
			continue
		}
		msgs = append(msgs, item.Message)
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the list to errors.As.
func (e *ResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Errors
}

// Code returns the first extensions.code in the list, or "".
func (e *ResponseError) Code() string {
	if e == nil {
		return ""
	}
	for _, item := range e.Errors {
		if item == nil || item.Extensions == nil {
			continue
		}
		if code, ok := item.Extensions["code"].(string); ok && code != "" {
			return code
		}
	}
	return ""
}

// HTTPError is a non-2xx answer that carried no GraphQL errors.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("graphql: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
