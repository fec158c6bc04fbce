// Package client is the host-facing surface: it wires a signaling session to
// the WebSocket transport and the pion media adapter, and queues host events
// until the host dispatches them.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/signaling"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/webrtcpeer"
)

type Options struct {
	// Config supplies transport timeouts and limits.
	Config  config.Config
	Session config.SessionConfig

	// API is the pion API for media sessions; see webrtcpeer.NewAPI.
	API         *webrtc.API
	LocalTracks []webrtc.TrackLocal

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Dialer and Media replace the WebSocket transport and the pion adapter.
	Dialer signaling.Dialer
	Media  signaling.MediaFactory
}

// Client owns one signaling session. Host callbacks never run on library
// goroutines: they are queued and run by DispatchEvents.
type Client struct {
	metrics *metrics.Metrics
	session *signaling.Session
	queue   eventQueue

	mu               sync.Mutex
	onNotify         func(raw string)
	onAddTrack       func(webrtcpeer.TrackInfo)
	onRemoveTrack    func(webrtcpeer.TrackInfo)
	onTransportError func(error)
}

func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{metrics: opts.Metrics}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &signaling.WebSocketDialer{
			HandshakeTimeout: opts.Config.HandshakeTimeout,
			WriteTimeout:     opts.Config.WriteTimeout,
			CloseTimeout:     opts.Config.CloseTimeout,
			MaxMessageBytes:  opts.Config.MaxSignalingMessageBytes,
			Logger:           logger,
		}
	}

	media := opts.Media
	if media == nil {
		media = webrtcpeer.NewFactory(webrtcpeer.FactoryConfig{
			API:            opts.API,
			LocalTracks:    opts.LocalTracks,
			Logger:         logger,
			Metrics:        opts.Metrics,
			OnTrackAdded:   c.trackAdded,
			OnTrackRemoved: c.trackRemoved,
		})
	}

	session, err := signaling.NewSession(signaling.Config{
		Session:          opts.Session,
		Dialer:           dialer,
		Media:            media,
		Logger:           logger,
		Metrics:          opts.Metrics,
		OnNotify:         c.notify,
		OnTransportError: c.transportError,
	})
	if err != nil {
		return nil, err
	}
	c.session = session
	return c, nil
}

func (c *Client) Session() *signaling.Session { return c.session }

func (c *Client) Connect(ctx context.Context) error { return c.session.Connect(ctx) }

// Close starts teardown; Done is closed when it has finished. Queued host
// events stay queued and can still be dispatched.
func (c *Client) Close() error { return c.session.Close() }

func (c *Client) Done() <-chan struct{} { return c.session.Done() }

func (c *Client) SetOnNotify(fn func(raw string)) {
	c.mu.Lock()
	c.onNotify = fn
	c.mu.Unlock()
}

func (c *Client) SetOnAddTrack(fn func(webrtcpeer.TrackInfo)) {
	c.mu.Lock()
	c.onAddTrack = fn
	c.mu.Unlock()
}

func (c *Client) SetOnRemoveTrack(fn func(webrtcpeer.TrackInfo)) {
	c.mu.Lock()
	c.onRemoveTrack = fn
	c.mu.Unlock()
}

// SetOnTransportError registers a callback for control-channel failures. The
// session does not reconnect; hosts typically close and start over.
func (c *Client) SetOnTransportError(fn func(error)) {
	c.mu.Lock()
	c.onTransportError = fn
	c.mu.Unlock()
}

// DispatchEvents runs queued host callbacks in arrival order on the calling
// goroutine and returns how many ran. Callbacks are looked up when they run,
// so a callback registered before dispatch sees events queued earlier.
func (c *Client) DispatchEvents() int {
	n := 0
	for {
		fn, ok := c.queue.pop()
		if !ok {
			break
		}
		fn()
		n++
	}
	if n > 0 {
		c.metrics.Add(metrics.HostEventsDispatched, uint64(n))
	}
	return n
}

// PendingEvents reports how many host events are waiting for DispatchEvents.
func (c *Client) PendingEvents() int { return c.queue.len() }

// Ready reports nil while the ICE connection state is Connected.
func (c *Client) Ready() error {
	if st := c.session.ConnectionState(); st != webrtc.ICEConnectionStateConnected {
		return fmt.Errorf("ice connection state is %s", st)
	}
	return nil
}

func (c *Client) enqueue(fn func()) {
	c.queue.push(fn)
	c.metrics.Inc(metrics.HostEventsQueued)
}

func (c *Client) notify(raw string) {
	c.enqueue(func() {
		c.mu.Lock()
		fn := c.onNotify
		c.mu.Unlock()
		if fn != nil {
			fn(raw)
		}
	})
}

func (c *Client) transportError(err error) {
	c.enqueue(func() {
		c.mu.Lock()
		fn := c.onTransportError
		c.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
}

func (c *Client) trackAdded(info webrtcpeer.TrackInfo) {
	c.enqueue(func() {
		c.mu.Lock()
		fn := c.onAddTrack
		c.mu.Unlock()
		if fn != nil {
			fn(info)
		}
	})
}

func (c *Client) trackRemoved(info webrtcpeer.TrackInfo) {
	c.enqueue(func() {
		c.mu.Lock()
		fn := c.onRemoveTrack
		c.mu.Unlock()
		if fn != nil {
			fn(info)
		}
	})
}

// ParseMetadata turns the host's metadata string into connect metadata. An
// empty string means no metadata; invalid JSON is logged and dropped so the
// session still connects.
func ParseMetadata(raw string, logger *slog.Logger, m *metrics.Metrics) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !json.Valid([]byte(raw)) {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("ignoring invalid metadata JSON", "bytes", len(raw))
		m.Inc(metrics.MetadataDropped)
		return nil
	}
	return json.RawMessage(raw)
}

// SessionConfig builds the session configuration from cfg, filling in the
// client identity for this build.
func SessionConfig(cfg config.Config, version, commit string, logger *slog.Logger, m *metrics.Metrics) (config.SessionConfig, error) {
	opts := cfg.SessionOptions()
	opts.Metadata = ParseMetadata(cfg.Metadata, logger, m)
	opts.SoraClient = config.DefaultSoraClient(version, commit)
	return config.NewSessionConfig(opts)
}

// IsConfigurationError reports whether err was caused by the session
// configuration rather than the network.
func IsConfigurationError(err error) bool {
	return errors.Is(err, signaling.ErrInvalidConfiguration) || errors.Is(err, config.ErrInvalidSessionConfig)
}
