package xactor

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrActorNotRunning    = errors.New("actor not running")
	ErrProcessingTimeout  = errors.New("actor processing timeout")
	ErrNoReply            = errors.New("message does not expect a reply")
	ErrAlreadyReplied     = errors.New("message already replied")
	ErrNoResponse         = errors.New("actor finished without reply")
	ErrUnhandledMessage   = errors.New("unhandled message")
	ErrDuplicateHandler   = errors.New("duplicate message handler")
	ErrUnexpectedResponse = errors.New("unexpected response type")
)

// Receive失败(返回error或panic, 或超时重试耗尽)
type ProcessingError struct {
	Actor   string
	Message any
	Attempt int
	Cause   error
	Panic   any
	Stack   []byte
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("actor %s: processing %T failed (attempt %d): %v", e.Actor, e.Message, e.Attempt, e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func newPanicError(actor string, msg any, attempt int, r any, stack []byte) *ProcessingError {
	return &ProcessingError{
		Actor:   actor,
		Message: msg,
		Attempt: attempt,
		Cause:   errors.Errorf("panic: %v", r),
		Panic:   r,
		Stack:   stack,
	}
}
