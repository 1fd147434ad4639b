package protocol

import (
	"errors"
	"fmt"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

var (
	// ErrVintRange is reported when a value does not fit in 30 bits.
	ErrVintRange = Error("vint30: value out of range")
	// ErrShortInput is reported when a decoder runs out of bytes.
	ErrShortInput = Error("input truncated")
	// ErrUnsupportedMethod is reported when a revision has no wire form for a method.
	ErrUnsupportedMethod = Error("method not supported by protocol revision")
)

// ProtocolError reports stream-level corruption: a bad header, a truncated
// frame or a response that does not match the outstanding request. The
// stream is desynchronized and must not be reused.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Msg, e.Err)
	}
	return "protocol error: " + e.Msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// ServiceError is a failure reported by the remote store. The connection
// remains usable after a ServiceError.
//
// Message and Aux are nil when the corresponding section was absent from
// the error payload.
type ServiceError struct {
	Status  int8
	Code    uint32
	Message []byte
	Aux     []byte
}

func (e *ServiceError) Error() string {
	if len(e.Message) != 0 {
		return fmt.Sprintf("service error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("service error %d (status %d)", e.Code, e.Status)
}

// HasMessage reports whether the error payload carried a message section.
func (e *ServiceError) HasMessage() bool { return e.Message != nil }

// HasAux reports whether the error payload carried trailing auxiliary bytes.
func (e *ServiceError) HasAux() bool { return e.Aux != nil }

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// AsServiceError returns the *ServiceError in err's chain, if any.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
