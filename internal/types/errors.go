// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of a conversation turn.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindEmptyResult        ErrorKind = "EMPTY_RESULT"
	KindUnrecognizedInput  ErrorKind = "UNRECOGNIZED_INPUT"
	KindStoreUnavailable   ErrorKind = "STORE_UNAVAILABLE"
	KindChannelUnavailable ErrorKind = "CHANNEL_UNAVAILABLE"
)

// ErrChatGone is returned by channels when the recipient can no longer be
// reached (blocked the bot, chat deleted).
var ErrChatGone = errors.New("chat gone")

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
