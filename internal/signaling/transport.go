package signaling

import (
	"context"
	"crypto/tls"
)

// Dialer opens the signaling control channel. tlsConfig is nil for ws://
// URLs.
type Dialer interface {
	Dial(ctx context.Context, rawURL string, tlsConfig *tls.Config) (Conn, error)
}

// Conn is one open control channel.
//
// ReadMessage is only called from a single goroutine. WriteMessage may be
// called concurrently with itself and with ReadMessage. Close starts the
// close handshake; afterwards ReadMessage and WriteMessage return errors
// wrapping ErrTransportClosed.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
