package nlp

import "errors"

// Sentinels for model calls that reached the service but produced no usable
// answer. Every *CallError unwraps to exactly one of them.
var (
	ErrRateLimit     = errors.New("rate limit exceeded")
	ErrRefusal       = errors.New("model refused the prompt")
	ErrEmptyResponse = errors.New("model returned no usable content")
)

// CallError is a classified model failure.
type CallError struct {
	// Cause is ErrRateLimit, ErrRefusal or ErrEmptyResponse.
	Cause   error
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return e.Cause.Error()
	}
	return e.Cause.Error() + ": " + e.Message
}

func (e *CallError) Unwrap() error { return e.Cause }

// Retryable reports whether the same call may succeed after a backoff.
func (e *CallError) Retryable() bool {
	return errors.Is(e.Cause, ErrRateLimit)
}

// Answered reports whether the service produced a response. Refusals and empty
// bodies say nothing about service health.
func (e *CallError) Answered() bool {
	return errors.Is(e.Cause, ErrRefusal) || errors.Is(e.Cause, ErrEmptyResponse)
}

// NewRateLimitError reports a 429 from the service.
func NewRateLimitError(message ...string) *CallError {
	err := &CallError{Cause: ErrRateLimit}
	if len(message) > 0 {
		err.Message = message[0]
	}
	return err
}

// NewRefusalError reports a model refusal, with the refusal text as message.
func NewRefusalError(message string) *CallError {
	return &CallError{Cause: ErrRefusal, Message: message}
}

// NewEmptyResponseError reports a response without content.
func NewEmptyResponseError(message string) *CallError {
	return &CallError{Cause: ErrEmptyResponse, Message: message}
}

func asCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
