package types

import (
	"context"
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrEmptyID      = errors.New("id cannot be empty")
	ErrEmptyQuery   = errors.New("query cannot be empty")
	ErrInvalidLimit = errors.New("limit must not be negative")
	ErrNotFound     = errors.New("not found")
)

// ErrorKind classifies failures of external collaborators.
type ErrorKind int

const (
	// KindStoreUnavailable is a transient graph store failure.
	KindStoreUnavailable ErrorKind = iota + 1
	// KindEmbeddingService is a transient embedding-generation failure.
	KindEmbeddingService
	// KindJudgmentService is a transient relevance-judgment failure.
	KindJudgmentService
	// KindTimeout is a deadline exceeded on any external call.
	KindTimeout
	// KindConfiguration is fatal at startup only.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindStoreUnavailable:
		return "StoreUnavailable"
	case KindEmbeddingService:
		return "EmbeddingServiceError"
	case KindJudgmentService:
		return "JudgmentServiceError"
	case KindTimeout:
		return "Timeout"
	case KindConfiguration:
		return "ConfigurationError"
	default:
		return "Unknown"
	}
}

// Error wraps a failure with its kind and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support by kind, so errors.Is(err, ErrTimeout) matches any
// *Error of kind KindTimeout regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Sentinels for errors.Is.
var (
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}
	ErrEmbeddingService = &Error{Kind: KindEmbeddingService}
	ErrJudgmentService  = &Error{Kind: KindJudgmentService}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
)

// Wrap classifies err under kind. Context deadline errors are always classified as
// Timeout, and an err that already is an *Error is returned unchanged.
func Wrap(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewConfigurationError reports an invalid configuration value.
func NewConfigurationError(field, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: field, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return 0
}
