package action

import (
	"encoding/json"
	"errors"

	"planner/internal/store"
)

const (
	CodeValidation    = string(store.CodeValidation)
	CodeNotFound      = string(store.CodeNotFound)
	CodeInvalidOrder  = string(store.CodeInvalidOrder)
	CodeInvalidMove   = string(store.CodeInvalidMove)
	CodeConflict      = string(store.CodeConflict)
	CodeUnknownAction = "UNKNOWN_ACTION"
	CodeForbidden     = "FORBIDDEN"
	CodeInternal      = "INTERNAL_ERROR"

	// Transport codes. The request may or may not have been applied.
	CodeTimeout   = "TIMEOUT"
	CodeTransport = "TRANSPORT_ERROR"
)

// Request is one call across the action boundary.
type Request struct {
	ID      string          `json:"id"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Sender is stamped by the transport that received the request; it is never read
	// from the wire.
	Sender string `json:"-"`
}

type Response struct {
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// Error is the uniform failure shape returned by every action.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

// AsError normalizes any error into the boundary's error shape.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	var se *store.Error
	if errors.As(err, &se) && se != nil {
		return &Error{Code: string(se.Code), Message: se.Message, Details: se.Details}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// CodeOf returns the boundary code for err ("" for nil).
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

// IsUnknownOutcome reports whether a failed call may still have been applied by the worker.
func IsUnknownOutcome(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeTransport:
		return true
	}
	return false
}

func Failure(id string, err error) Response {
	return Response{ID: id, OK: false, Error: AsError(err)}
}
