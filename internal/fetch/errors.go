package fetch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies remote failures. Callers that only need to know a
// refresh failed can ignore it; the TUI shows it for diagnostics.
type ErrorKind int

const (
	// KindTransport: the request could not be sent or the connection failed.
	KindTransport ErrorKind = iota + 1
	// KindServer: the remote answered outside the 2xx range.
	KindServer
	// KindDecode: the payload did not match the expected shape.
	KindDecode
	// KindOffline: the pre-flight connectivity check failed; no request was made.
	KindOffline
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	case KindOffline:
		return "offline"
	}
	return "unknown"
}

// Error is the single error type returned by the remote source path.
type Error struct {
	Kind       ErrorKind
	StatusCode int // set for KindServer
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("fetch: server returned status %d", e.StatusCode)
	case KindOffline:
		return "fetch: offline"
	}
	if e.Err == nil {
		return "fetch: " + e.Kind.String() + " error"
	}
	return fmt.Sprintf("fetch: %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// NewTransportError wraps a failure to complete the request.
func NewTransportError(err error) error {
	return &Error{Kind: KindTransport, Err: err}
}

// NewServerError reports a non-2xx status.
func NewServerError(status int) error {
	return &Error{Kind: KindServer, StatusCode: status}
}

// NewDecodeError wraps a payload shape mismatch.
func NewDecodeError(err error) error {
	return &Error{Kind: KindDecode, Err: err}
}

// ErrOffline is returned when the connectivity check fails.
var ErrOffline error = &Error{Kind: KindOffline}
