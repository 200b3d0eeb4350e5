package cdp

import (
	"errors"
	"fmt"
)

// DiscoveryErrorKind classifies a failed discovery request.
type DiscoveryErrorKind int

const (
	// KindBadStatus indicates the endpoint answered with a non-200 status.
	KindBadStatus DiscoveryErrorKind = iota
	// KindTimeout indicates the request did not complete within its timeout.
	KindTimeout
	// KindNetwork indicates a transport-level failure such as connection refused.
	KindNetwork
	// KindMalformedBody indicates the body was not the expected JSON.
	KindMalformedBody
)

// String returns a human-readable name for the error kind.
func (k DiscoveryErrorKind) String() string {
	switch k {
	case KindBadStatus:
		return "bad status"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network error"
	case KindMalformedBody:
		return "malformed body"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against a *DiscoveryError of the same kind.
var (
	ErrBadStatus     = errors.New("unexpected discovery status")
	ErrTimeout       = errors.New("discovery request timed out")
	ErrNetwork       = errors.New("discovery endpoint unreachable")
	ErrMalformedBody = errors.New("malformed discovery response")
)

// Precondition errors for lifecycle operations.
var (
	// ErrConnectPrecondition is returned when Connect is called on an
	// instance that is connecting, open or closed.
	ErrConnectPrecondition = errors.New("connect requires an unconnected instance")

	// ErrDisconnectPrecondition is returned when Disconnect is called
	// without a prior successful Connect, or after the connection closed.
	ErrDisconnectPrecondition = errors.New("connect() must succeed before attempting to disconnect")

	// ErrSendPrecondition is returned when SendRawMessage is called while
	// the channel is not open.
	ErrSendPrecondition = errors.New("cannot send on a channel that is not open")
)

// DiscoveryError describes a single failed discovery request.
type DiscoveryError struct {
	Kind DiscoveryErrorKind
	URL  string
	// StatusCode is set for KindBadStatus.
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	switch {
	case e.Kind == KindBadStatus:
		return fmt.Sprintf("discovery %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("discovery %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("discovery %s: %s", e.URL, e.Kind)
	}
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *DiscoveryError) Is(target error) bool {
	switch target {
	case ErrBadStatus:
		return e.Kind == KindBadStatus
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrMalformedBody:
		return e.Kind == KindMalformedBody
	}
	return false
}

// RetryExhaustedError is returned once every discovery attempt has failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("failed to establish http get after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// TransportOpenError is returned when the channel fails before it opens.
type TransportOpenError struct {
	URL string
	Err error
}

func (e *TransportOpenError) Error() string {
	return fmt.Sprintf("open channel %s: %v", e.URL, e.Err)
}

func (e *TransportOpenError) Unwrap() error {
	return e.Err
}
