package goSession

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/classify"
)

var (
	// ErrTransport marks network, DNS, timeout and cancellation failures. Never triggers a refresh.
	ErrTransport = errors.New("transport failure")
	// ErrAuthExpired marks an access token the API no longer accepts.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrAuthInvalid marks a rejected refresh exchange. The session is unrecoverable.
	ErrAuthInvalid = errors.New("refresh token rejected")
	// ErrValidation marks login or registration input rejected by the API.
	ErrValidation = errors.New("request rejected")
	// ErrUnexpected marks an API failure that fits no other kind.
	ErrUnexpected = errors.New("unexpected api failure")
	// ErrNoSession is returned when an operation needs stored tokens and none exist.
	ErrNoSession = errors.New("no session")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNotClient is returned when a client-only operation runs on a server Engine.
	ErrNotClient = errors.New("operation requires a client environment")
	// ErrNilResponse is returned when the API reports success without a payload.
	ErrNilResponse = errors.New("api returned an empty payload")
)

// Error wraps a collaborator failure with its classification. Error() returns the
// underlying message unchanged so callers can show API feedback verbatim.
type Error struct {
	Kind classify.Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return "<nil>"
	}
	return e.Err.Error()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if s := kindSentinel(e.Kind); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Detail renders op and kind for logs; it never includes token values.
func (e *Error) Detail() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func kindSentinel(k classify.Kind) error {
	switch k {
	case classify.KindTransport:
		return ErrTransport
	case classify.KindAuthExpired:
		return ErrAuthExpired
	case classify.KindAuthInvalid:
		return ErrAuthInvalid
	case classify.KindValidation:
		return ErrValidation
	case classify.KindUnknown:
		return ErrUnexpected
	default:
		return nil
	}
}

// KindOf returns the classification carried by err, or classifies it afresh.
func KindOf(err error) classify.Kind {
	if err == nil {
		return classify.KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify.Classify(err).Kind
}

// wrapAPIError classifies err for op. Login and registration failures that are
// not transport problems are input rejections, whatever their wording.
func wrapAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	kind := classify.Classify(err).Kind
	switch op {
	case opLogin, opRegister:
		if kind != classify.KindTransport {
			kind = classify.KindValidation
		}
	case opRefresh:
		if kind != classify.KindTransport {
			kind = classify.KindAuthInvalid
		}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

const (
	opLogin    = "login"
	opRegister = "register"
	opRefresh  = "refresh"
	opMe       = "me"
	opLogout   = "logout"
)
