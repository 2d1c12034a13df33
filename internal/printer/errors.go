package printer

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotSupported   = errors.New("bluetooth is not supported on this host")
	ErrNoDevicesFound = errors.New("no matching printer found")
	ErrSessionFailed  = errors.New("failed to open printer session")
	ErrWriteFailed    = errors.New("write to printer failed")
	ErrNotConnected   = errors.New("printer not connected")
)

// Kind classifies why a printer operation failed
type Kind int

const (
	CapabilityUnavailable Kind = iota + 1
	DiscoveryFailed
	SessionFailed
	TransmissionFailed
	NotConnected
)

func (k Kind) String() string {
	switch k {
	case CapabilityUnavailable:
		return "capability_unavailable"
	case DiscoveryFailed:
		return "discovery_failed"
	case SessionFailed:
		return "session_failed"
	case TransmissionFailed:
		return "transmission_failed"
	case NotConnected:
		return "not_connected"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case CapabilityUnavailable:
		return ErrNotSupported
	case DiscoveryFailed:
		return ErrNoDevicesFound
	case SessionFailed:
		return ErrSessionFailed
	case TransmissionFailed:
		return ErrWriteFailed
	case NotConnected:
		return ErrNotConnected
	default:
		return nil
	}
}

// Error records a failed printer operation. errors.Is matches it against
// the sentinel for its Kind as well as anything in the wrapped cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func newError(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("printer %s: %v", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("printer %s: %v: %v", e.Op, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf reports the Kind of a printer error, or 0 if err is not one.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
