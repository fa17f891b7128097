package errors

import (
	"errors"
	"fmt"
)

// Code is a stable wire-level error code carried on outbound error events.
type Code string

const (
	// Protocol errors: the envelope itself could not be handled.
	CodeBadEnvelope = Code("BAD_ENVELOPE")
	CodeUnknownType = Code("UNKNOWN_TYPE")

	// Validation errors: well-formed but rejected input. Never mutate session state.
	CodeUnknownGame     = Code("UNKNOWN_GAME")
	CodeUnknownPlayer   = Code("UNKNOWN_PLAYER")
	CodeUnknownQuestion = Code("UNKNOWN_QUESTION")
	CodeUnknownOption   = Code("UNKNOWN_OPTION")
	CodeWindowClosed    = Code("WINDOW_CLOSED")
	CodeBadState        = Code("BAD_STATE")
	CodeNotHost         = Code("NOT_HOST")
	CodeNotJoined       = Code("NOT_JOINED")
	CodeGameEnded       = Code("GAME_ENDED")

	// Identity errors: distinct from validation so clients redirect instead of retrying.
	CodeKicked = Code("KICKED")

	CodeInternal = Code("INTERNAL")
)

type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: string(code),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Convert extracts an *Error from err, or wraps it as an internal error.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithDetail(key, value string) Option {
	return optionFunc(func(e *Error) {
		if e.Details == nil {
			e.Details = make(map[string]string)
		}
		e.Details[key] = value
	})
}
