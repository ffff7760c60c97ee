// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apperr

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrPhase            = errors.New("not allowed in the current phase")
	ErrIneligible       = errors.New("not eligible")
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrAuthorization    = errors.New("not authorized")
	ErrDuplicate        = errors.New("duplicate application")
)

var kindNames = map[error]string{
	ErrValidation:       "validation",
	ErrNotFound:         "not_found",
	ErrPhase:            "phase",
	ErrIneligible:       "ineligible",
	ErrInvalidCandidate: "invalid_candidate",
	ErrAlreadyVoted:     "already_voted",
	ErrAuthorization:    "authorization",
	ErrDuplicate:        "duplicate",
}

// Error is a domain failure of a single kind with a caller-facing message
type Error struct {
	kind    error
	message string
}

// New creates an Error of the given kind
func New(kind error, format string, args ...any) error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.kind.Error() + ": " + e.message
}

// Message returns the text without the kind prefix
func (e *Error) Message() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the stable name of err's failure kind, or "internal" for
// anything that is not a domain failure.
func Kind(err error) string {
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "internal"
}

// Message returns the caller-facing message for err. Internal errors get a
// generic message so storage details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.message
	}
	return "internal error"
}
