package client

import (
	"errors"
	"fmt"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
	"github.com/jasonrowsell/chirpstore/pkg/transport"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

var (
	ErrNotFound  = Error("key not found")
	ErrKeyExists = Error("key already exists")
	ErrClosed    = Error("client closed")

	// ErrStopScan may be returned by a Scan callback to end the scan early.
	ErrStopScan = Error("stop scan")
)

// KeyError reports a key-specific outcome such as ErrNotFound. It wraps
// both the outcome and the service error the server returned.
type KeyError struct {
	Key     string
	Err     error
	Service *protocol.ServiceError
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %q: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() []error {
	if e.Service == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Service}
}

// IsNotFound reports whether err means the requested key does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsFatal reports whether err leaves the connection unusable. Service
// errors are not fatal; protocol and transport errors are.
func IsFatal(err error) bool {
	return protocol.IsProtocolError(err) ||
		transport.IsConnError(err) ||
		errors.Is(err, ErrClosed)
}

// unfilterErr translates the known service error codes into key errors.
// Other errors are returned unchanged.
func unfilterErr(err error, key string) error {
	se, ok := protocol.AsServiceError(err)
	if !ok {
		return err
	}
	switch se.Code {
	case protocol.CodeKeyNotFound:
		if len(se.Aux) != 0 {
			key = string(se.Aux)
		}
		return &KeyError{Key: key, Err: ErrNotFound, Service: se}
	case protocol.CodeKeyExists:
		return &KeyError{Key: key, Err: ErrKeyExists, Service: se}
	}
	return err
}
