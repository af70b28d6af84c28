package store

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidOrder Code = "INVALID_ORDER"
	CodeInvalidMove  Code = "INVALID_MOVE"
	CodeConflict     Code = "CONFLICT"
)

// Error is a domain failure that the action boundary reports verbatim.
// Anything that is not an *Error is treated as internal.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Code) + ": " + e.Message
}

// CodeOf returns the domain code carried by err, or "" when err is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Code
	}
	return ""
}

func Validation(msg string, details map[string]any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func NotFound(kind, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

func InvalidMove(msg string, details map[string]any) *Error {
	return &Error{Code: CodeInvalidMove, Message: msg, Details: details}
}

func Conflict(msg string, details map[string]any) *Error {
	return &Error{Code: CodeConflict, Message: msg, Details: details}
}
