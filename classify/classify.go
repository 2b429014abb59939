// Package classify decides whether a failure returned by the API means the caller's
// credentials are no longer accepted.
//
// Only auth-shaped failures are worth a refresh attempt. Everything else, including
// network failures and errors nobody recognises, classifies as non-auth so a real
// outage is never masked by a spurious refresh.
package classify

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Kind is the failure taxonomy used across the session core.
type Kind uint8

const (
	// KindNone is the classification of a nil error.
	KindNone Kind = iota
	// KindTransport covers network, DNS, timeout and cancellation failures.
	KindTransport
	// KindAuthExpired means the presented token is expired or no longer accepted.
	KindAuthExpired
	// KindAuthInvalid means a refresh itself was rejected.
	KindAuthInvalid
	// KindValidation means the API rejected the input (login/register).
	KindValidation
	// KindUnknown is any other failure.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindAuthExpired:
		return "auth_expired"
	case KindAuthInvalid:
		return "auth_invalid"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Result is the outcome of [Classify].
type Result struct {
	IsAuthError bool
	Kind        Kind
}

var authPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invalid[\s_-]*token`),
	regexp.MustCompile(`(?i)token[\s_-]*(is[\s_-]*)?invalid`),
	regexp.MustCompile(`(?i)expired[\s_-]*token`),
	regexp.MustCompile(`(?i)(token|jwt)[\s_-]*(has[\s_-]*)?expired`),
	regexp.MustCompile(`(?i)unauthori[sz]ed`),
	regexp.MustCompile(`(?i)unauthenticated`),
	regexp.MustCompile(`(?i)authentication[\s_-]*failed`),
	regexp.MustCompile(`(?i)context[\s_-]*creation[\s_-]*failed.*token`),
}

var validationCodes = map[string]struct{}{
	"BAD_USER_INPUT":            {},
	"GRAPHQL_VALIDATION_FAILED": {},
	"VALIDATION_ERROR":          {},
	"CONFLICT":                  {},
}

var authCodes = map[string]struct{}{
	"UNAUTHENTICATED": {},
	"UNAUTHORIZED":    {},
	"TOKEN_EXPIRED":   {},
	"INVALID_TOKEN":   {},
	"FORBIDDEN_TOKEN": {},
}

// Classify inspects err. It never panics; nil and unrecognised errors are non-auth.
func Classify(err error) Result {
	if err == nil {
		return Result{Kind: KindNone}
	}
	if isTransport(err) {
		return Result{Kind: KindTransport}
	}

	if code := graphQLCode(err); code != "" {
		if _, ok := authCodes[code]; ok {
			return Result{IsAuthError: true, Kind: KindAuthExpired}
		}
		if _, ok := validationCodes[code]; ok {
			return Result{Kind: KindValidation}
		}
	}

	if MatchesAuthPattern(err.Error()) {
		return Result{IsAuthError: true, Kind: KindAuthExpired}
	}
	if graphQLCode(err) != "" || hasGraphQLErrors(err) {
		return Result{Kind: KindValidation}
	}
	return Result{Kind: KindUnknown}
}

// IsAuthError is shorthand for Classify(err).IsAuthError.
func IsAuthError(err error) bool {
	return Classify(err).IsAuthError
}

// MatchesAuthPattern applies the textual auth patterns to msg.
func MatchesAuthPattern(msg string) bool {
	if strings.TrimSpace(msg) == "" {
		return false
	}
	for _, re := range authPatterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// graphQLCode returns the first extensions.code carried by a GraphQL error in err's chain.
func graphQLCode(err error) string {
	var list gqlerror.List
	if errors.As(err, &list) {
		for _, e := range list {
			if code := extensionCode(e); code != "" {
				return code
			}
		}
	}
	var single *gqlerror.Error
	if errors.As(err, &single) {
		return extensionCode(single)
	}
	return ""
}

func hasGraphQLErrors(err error) bool {
	var list gqlerror.List
	if errors.As(err, &list) && len(list) > 0 {
		return true
	}
	var single *gqlerror.Error
	return errors.As(err, &single)
}

func extensionCode(e *gqlerror.Error) string {
	if e == nil || e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return strings.ToUpper(strings.TrimSpace(code))
}
