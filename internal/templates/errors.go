package templates

import (
	"fmt"
	"net/http"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindInvalidQuery
	KindInvalidInput
	KindValidation
	KindServerFault
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidQuery:
		return "invalid_query"
	case KindInvalidInput:
		return "invalid_input"
	case KindValidation:
		return "validation"
	case KindServerFault:
		return "server_fault"
	default:
		return "unknown"
	}
}

// Error is a request failure the client is meant to observe.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Message }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidQuery, KindInvalidInput:
		return http.StatusBadRequest
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

const simulatedFaultMessage = "simulated server error: database connection failed"

var errSimulatedFault = &Error{Kind: KindServerFault, Message: simulatedFaultMessage}

// StatusError carries an arbitrary status chosen by the caller of the
// canned-error endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string { return fmt.Sprintf("status %d: %s", e.Code, e.Message) }

var cannedMessages = map[int]string{
	http.StatusBadRequest:          "bad request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "resource not found",
	http.StatusInternalServerError: "internal server error",
	http.StatusBadGateway:          "bad gateway",
	http.StatusServiceUnavailable:  "service unavailable",
}

// CannedError returns the fixed failure for code; unknown codes get a
// generic "HTTP {code} error" message.
func CannedError(code int) *StatusError {
	msg, ok := cannedMessages[code]
	if !ok {
		msg = fmt.Sprintf("HTTP %d error", code)
	}
	return &StatusError{Code: code, Message: msg}
}
