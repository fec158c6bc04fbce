package signaling

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 1 * time.Second
	DefaultCloseTimeout     = 2 * time.Second
)

// WebSocketDialer dials the control channel with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// CloseTimeout bounds how long Close waits for the server's close frame.
	CloseTimeout time.Duration
	// MaxMessageBytes caps inbound message size. Zero means no limit.
	MaxMessageBytes int64
	Logger          *slog.Logger
}

func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string, tlsConfig *tls.Config) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: orDefault(d.HandshakeTimeout, DefaultHandshakeTimeout),
		TLSClientConfig:  tlsConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}

	if d.MaxMessageBytes > 0 {
		conn.SetReadLimit(d.MaxMessageBytes)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &wsConn{
		conn:         conn,
		logger:       logger,
		writeTimeout: orDefault(d.WriteTimeout, DefaultWriteTimeout),
		closeTimeout: orDefault(d.CloseTimeout, DefaultCloseTimeout),
		readDone:     make(chan struct{}),
	}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration
	closeTimeout time.Duration

	writeMu sync.Mutex

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	readDone     chan struct{}
	readDoneOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.readDoneOnce.Do(func() { close(c.readDone) })
		if c.closing.Load() {
			return nil, fmt.Errorf("%w: %v", ErrTransportClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.closing.Load() {
		return ErrTransportClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if c.closing.Load() {
			return fmt.Errorf("%w: %v", ErrTransportClosed, err)
		}
		return err
	}
	return nil
}

// Close sends a close frame, waits up to closeTimeout for the reader to see
// the server's reply, then closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.writeMu.Lock()
		err := c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout))
		c.writeMu.Unlock()

		if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !isClosedConnError(err) {
			c.logger.Debug("signaling close frame not sent", "err", err)
		} else {
			t := time.NewTimer(c.closeTimeout)
			select {
			case <-c.readDone:
			case <-t.C:
				c.logger.Debug("signaling close handshake timed out", "timeout", c.closeTimeout)
			}
			t.Stop()
		}

		c.closeErr = c.conn.Close()
		if isClosedConnError(c.closeErr) {
			c.closeErr = nil
		}
	})
	return c.closeErr
}

func isClosedConnError(err error) bool {
	return err != nil && errors.Is(err, net.ErrClosed)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
