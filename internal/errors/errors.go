// Package errors defines the coded errors surfaced by wikichain to its callers.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that need to react to it.
type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeTransport  Code = "TRANSPORT"
	CodeAPI        Code = "API"
	CodeNoProgress Code = "NO_PROGRESS"
	CodeInternal   Code = "INTERNAL"
)

// Context keys used across packages.
const (
	CtxTitle  = "title"
	CtxSource = "source"
	CtxTarget = "target"
	CtxEdge   = "edge"
)

// Error is a coded error with optional context and cause.
type Error struct {
	Code    Code
	Message string
	Err     error
	Context map[string]any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// With attaches a context value and returns the receiver.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first coded error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
