// Package errs defines the error taxonomy shared by every operation:
// configuration, unsupported-operation, not-found, bad-request and store
// errors, each carrying an HTTP-style status code.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

// Kind classifies an error at the service boundary.
type Kind string

const (
	KindConfig      Kind = "configuration"
	KindUnsupported Kind = "method-not-allowed"
	KindNotFound    Kind = "not-found"
	KindBadRequest  Kind = "bad-request"
	KindStore       Kind = "store"
)

// Error is the single error shape callers see. Err keeps the original
// error for logging and errors.Is/As chains.
type Error struct {
	Kind    Kind   `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Config reports missing required setup. Raised at construction, never at
// call time.
func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Code: http.StatusInternalServerError, Message: fmt.Sprintf(format, args...)}
}

// Unsupported reports an operation the append-only store cannot perform.
func Unsupported(op string) *Error {
	return &Error{Kind: KindUnsupported, Code: http.StatusMethodNotAllowed, Message: op + " is not supported"}
}

// NotFound reports a read-one with zero matching rows.
func NotFound(id any) *Error {
	return &Error{Kind: KindNotFound, Code: http.StatusNotFound, Message: fmt.Sprintf("no record found for id %v", id)}
}

// BadRequest reports a malformed query or record shape.
func BadRequest(err error) *Error {
	return &Error{Kind: KindBadRequest, Code: http.StatusBadRequest, Message: err.Error(), Err: err}
}

// WrapStore funnels every error surfaced by the query/write collaborator
// through one wrapping function. The influx client's status code and error
// name are preserved when available.
func WrapStore(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	code := http.StatusBadGateway
	msg := err.Error()
	var apiErr *influxhttp.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode > 0 {
			code = apiErr.StatusCode
		}
		if apiErr.Code != "" {
			msg = apiErr.Code + ": " + apiErr.Message
		}
	}
	return &Error{Kind: KindStore, Code: code, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the HTTP status for err, defaulting to 500.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return http.StatusInternalServerError
}
