package recorder

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a recorder Error per the error taxonomy: config and
// protocol errors are fatal, transport-transient errors are swallowed at
// the send boundary, transport-fatal errors abort the sink, a value whose
// kind disagrees with a key's frozen kind is a classification error (an
// unclassifiable value itself falls back to Other), and truncation is a
// warning, not an error return.
type ErrorCode string

const (
	ErrCodeConfig             ErrorCode = "config"
	ErrCodeProtocol           ErrorCode = "protocol"
	ErrCodeTransportTransient ErrorCode = "transport_transient"
	ErrCodeTransportFatal     ErrorCode = "transport_fatal"
	ErrCodeClassification     ErrorCode = "classification"
	ErrCodeTruncation         ErrorCode = "truncation"
)

// Error is the structured error type returned by this package's fallible
// operations. RecorderID is -1 when the error is not scoped to a recorder.
type Error struct {
	Op         string
	Code       ErrorCode
	RecorderID int32
	Key        int32
	Msg        string
	Inner      error
}

func (e *Error) Error() string {
	base := fmt.Sprintf("recorder: %s: %s", e.Op, e.Msg)
	if e.RecorderID >= 0 {
		base = fmt.Sprintf("%s (recorder_id=%d)", base, e.RecorderID)
	}
	if e.Key >= 0 {
		base = fmt.Sprintf("%s (key=%d)", base, e.Key)
	}
	if e.Inner != nil {
		base = fmt.Sprintf("%s: %v", base, e.Inner)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is allows errors.Is(err, target) to match on Code when target is itself
// an *Error carrying only a Code (the sentinel-comparison idiom).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError constructs a recorder Error not scoped to a recorder or key.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, RecorderID: -1, Key: -1, Msg: msg}
}

// NewConfigError is used for bootstrap/configuration violations.
func NewConfigError(op, msg string) *Error {
	return NewError(op, ErrCodeConfig, msg)
}

// NewProtocolError is used for misuse such as record() on an unregistered key.
func NewProtocolError(op string, recorderID int32, key int32, msg string) *Error {
	return &Error{Op: op, Code: ErrCodeProtocol, RecorderID: recorderID, Key: key, Msg: msg}
}

// WrapError wraps an underlying error with recorder context.
func WrapError(op string, code ErrorCode, inner error) *Error {
	msg := ""
	if inner != nil {
		msg = inner.Error()
	}
	return &Error{Op: op, Code: code, RecorderID: -1, Key: -1, Msg: msg, Inner: inner}
}

// IsCode reports whether err is (or wraps) a recorder Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
