package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a gateway failure at the boundary, so callers never
// have to pattern-match human-readable messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindTimeout
	KindNetwork
	KindUnavailable
	KindNotFound
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindUnavailable:
		return "unavailable"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified gateway failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err. Typed gateway errors carry
// their kind directly; anything else falls back to Classify.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return Classify(err)
}

// Classify infers a kind from an untyped error. Message sniffing is a
// last resort for errors that cross the boundary without a typed kind;
// providers should return *Error instead.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid login credentials"),
		strings.Contains(msg, "invalid credentials"):
		return KindInvalidCredentials
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "network"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"):
		return KindNetwork
	}
	return KindUnknown
}
