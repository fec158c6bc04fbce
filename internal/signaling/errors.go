package signaling

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrTransport            = errors.New("transport error")

	// ErrTransportClosed is returned by Conn methods after Close. Read loops
	// treat it as a quiet shutdown.
	ErrTransportClosed = errors.New("transport closed")

	ErrUnparseable        = errors.New("unparseable signaling message")
	ErrUnknownMessageType = errors.New("unknown message type")

	ErrAlreadyConnected = errors.New("session already connected")
	ErrClosed           = errors.New("session closed")
)

// ConfigurationError reports a session configuration problem found before
// any network activity.
type ConfigurationError struct {
	URL string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid signaling url %q: %v", e.URL, e.Err)
}

func (e *ConfigurationError) Unwrap() []error { return []error{ErrInvalidConfiguration, e.Err} }

// TransportError reports a failed dial, read or write on the control channel.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("signaling %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }
