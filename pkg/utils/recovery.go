package utils

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError is a recovered panic from the named operation.
type PanicError struct {
	Op    string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("%s: panic: %v", e.Op, e.Value)
}

// Recover must be deferred directly. It turns a panic into a *PanicError, logs it
// and hands it to onPanic when set.
func Recover(logger *slog.Logger, op string, onPanic func(error)) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	err := &PanicError{Op: op, Value: r, Stack: string(debug.Stack())}
	logger.Error("Recovered from panic", "op", op, "panic", r, "stack", err.Stack)
	if onPanic != nil {
		onPanic(err)
	}
}

// Go starts fn in a goroutine that logs and swallows panics.
func Go(logger *slog.Logger, op string, fn func()) {
	go func() {
		defer Recover(logger, op, nil)
		fn()
	}()
}
