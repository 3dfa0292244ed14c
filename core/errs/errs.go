// Package errs classifies failures so transports can decide how to surface them.
package errs

import (
	"errors"
	"strings"
)

// Kind groups errors by how the bot reacts to them.
type Kind string

const (
	// KindConfiguration marks a missing or invalid setting; fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindValidation marks bad user input during a conversation step; the step re-prompts.
	KindValidation Kind = "validation"
	// KindExternal marks a failed call to the ERP, the language model or the transcriber.
	KindExternal Kind = "external"
	// KindUnrecognized marks input that does not map to a known command.
	KindUnrecognized Kind = "unrecognized"
)

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E builds an *Error. A nil err is kept nil-safe for callers building messages.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration wraps err as a configuration failure.
func Configuration(op string, err error) *Error { return E(KindConfiguration, op, err) }

// Validation wraps err as a validation failure.
func Validation(op string, err error) *Error { return E(KindValidation, op, err) }

// External wraps err as an external service failure.
func External(op string, err error) *Error { return E(KindExternal, op, err) }

// Unrecognized wraps err as unrecognized input.
func Unrecognized(op string, err error) *Error { return E(KindUnrecognized, op, err) }

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Code is picked up by the router summary log as err_code.
func (e *Error) Code() string {
	return strings.ToUpper(string(e.Kind))
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
