package signaling

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateNegotiating
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateNegotiating:
		return "negotiating"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	Session config.SessionConfig
	Dialer  Dialer
	Media   MediaFactory

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Callbacks run on the session goroutine. They must not block and must
	// not call back into the Session synchronously.
	OnNotify         func(raw string)
	OnTransportError func(err error)
}

// Session is one signaling session. Its exported methods are safe for
// concurrent use.
type Session struct {
	id      string
	cfg     config.SessionConfig
	dialer  Dialer
	factory MediaFactory
	logger  *slog.Logger
	metrics *metrics.Metrics

	onNotify         func(raw string)
	onTransportError func(err error)

	mb   *mailbox
	done chan struct{}

	// Owned by the session goroutine.
	state        State
	iceState     webrtc.ICEConnectionState
	conn         Conn
	media        MediaSession
	events       *mediaEvents
	negotiations int
	retired      bool
	cancelDial   context.CancelFunc
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("signaling: Dialer is required")
	}
	if cfg.Media == nil {
		return nil, errors.New("signaling: Media is required")
	}
	if cfg.Session.ChannelID() == "" {
		return nil, errors.New("signaling: Session config is required (use config.NewSessionConfig)")
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id, "channel_id", cfg.Session.ChannelID())

	s := &Session{
		id:               id,
		cfg:              cfg.Session,
		dialer:           cfg.Dialer,
		factory:          cfg.Media,
		logger:           logger,
		metrics:          cfg.Metrics,
		onNotify:         cfg.OnNotify,
		onTransportError: cfg.OnTransportError,
		mb:               newMailbox(),
		done:             make(chan struct{}),
		state:            StateIdle,
		iceState:         webrtc.ICEConnectionStateNew,
	}
	go s.run()
	return s, nil
}

func (s *Session) run() {
	defer close(s.done)
	s.mb.run()
}

func (s *Session) ID() string { return s.id }

// Done is closed once the session has finished tearing down after Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// call runs fn on the session goroutine and waits for it to return. It
// reports false, without running fn, if the session goroutine is gone.
func (s *Session) call(fn func()) bool {
	finished := make(chan struct{})
	if !s.mb.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// query reads session state on the session goroutine, or directly once that
// goroutine has exited and the fields are no longer written.
func (s *Session) query(fn func()) {
	if s.call(fn) {
		return
	}
	<-s.done
	fn()
}

func (s *Session) State() State {
	var st State
	s.query(func() { st = s.state })
	return st
}

func (s *Session) ConnectionState() webrtc.ICEConnectionState {
	var st webrtc.ICEConnectionState
	s.query(func() { st = s.iceState })
	return st
}

// MediaSession returns the media session while the ICE connection state is
// Connected, and nil otherwise. The handle must not be used once the state
// leaves Connected.
func (s *Session) MediaSession() MediaSession {
	var media MediaSession
	s.query(func() {
		if !s.retired && s.iceState == webrtc.ICEConnectionStateConnected {
			media = s.media
		}
	})
	return media
}

// Connect dials the signaling URL and sends the connect message. It returns
// ErrAlreadyConnected if a connection is in progress or established, and
// ErrClosed after Close.
func (s *Session) Connect(ctx context.Context) error {
	rawURL := s.cfg.SignalingURL()
	tlsConfig, err := s.tlsConfigFor(rawURL)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var startErr error
	if !s.call(func() {
		switch s.state {
		case StateIdle:
			s.cancelDial = cancel
			s.setState(StateConnecting)
		case StateClosing, StateClosed:
			startErr = ErrClosed
		default:
			startErr = ErrAlreadyConnected
		}
	}) {
		return ErrClosed
	}
	if startErr != nil {
		return startErr
	}

	s.logger.Info("connecting to signaling server", "url_host", urlHost(rawURL), "tls", tlsConfig != nil)

	conn, err := s.dialer.Dial(dialCtx, rawURL, tlsConfig)
	if err != nil {
		var retired bool
		if !s.call(func() {
			s.cancelDial = nil
			retired = s.retired
			if s.state == StateConnecting {
				s.setState(StateIdle)
			}
		}) || retired {
			return ErrClosed
		}
		s.metrics.Inc(metrics.SignalingDialErrors)
		s.logger.Error("signaling dial failed", "err", err)
		return &TransportError{Op: "dial", Err: err}
	}

	var result error
	if !s.call(func() {
		s.cancelDial = nil
		if s.retired {
			result = ErrClosed
			go func() { _ = conn.Close() }()
			return
		}
		s.conn = conn
		s.setState(StateConnected)
		s.metrics.Inc(metrics.SignalingConnects)
		go s.readLoop(conn)
		s.send(conn, ConnectFromConfig(s.cfg))
	}) {
		_ = conn.Close()
		return ErrClosed
	}
	return result
}

func (s *Session) tlsConfigFor(rawURL string) (*tls.Config, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, &ConfigurationError{URL: rawURL, Err: err}
	}
	switch strings.ToLower(u.Scheme) {
	case "ws":
		return nil, nil
	case "wss":
		return &tls.Config{InsecureSkipVerify: s.cfg.Insecure()}, nil
	default:
		return nil, &ConfigurationError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q (expected ws or wss)", u.Scheme)}
	}
}

// Close retires the session without waiting for teardown. The media session
// is closed first, then the WebSocket close handshake runs; Done is closed
// when both have finished.
func (s *Session) Close() error {
	s.mb.Post(s.beginClose)
	return nil
}

func (s *Session) beginClose() {
	if s.retired {
		return
	}
	s.retired = true

	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}

	media := s.media
	s.retireMedia()
	conn := s.conn
	s.conn = nil

	if media == nil && conn == nil {
		s.setState(StateClosed)
		s.logger.Info("signaling session closed")
		s.mb.Close()
		return
	}

	s.setState(StateClosing)
	go func() {
		if media != nil {
			if err := media.Close(); err != nil {
				s.logger.Debug("media session close failed", "err", err)
			}
		}
		if conn != nil {
			if err := conn.Close(); err != nil {
				s.logger.Debug("signaling connection close failed", "err", err)
			}
		}
		s.mb.Post(func() {
			s.setState(StateClosed)
			s.logger.Info("signaling session closed")
			s.mb.Close()
		})
	}()
}

// setState moves the lifecycle state forward. Closed is terminal.
func (s *Session) setState(next State) {
	if s.state == StateClosed || s.state == next {
		return
	}
	s.logger.Debug("signaling state changed", "old_state", s.state.String(), "new_state", next.String())
	s.state = next
}

func (s *Session) beginNegotiation() {
	s.negotiations++
	s.refreshNegotiationState()
}

func (s *Session) endNegotiation() {
	if s.negotiations > 0 {
		s.negotiations--
	}
	s.refreshNegotiationState()
}

func (s *Session) refreshNegotiationState() {
	if s.state != StateConnected && s.state != StateNegotiating {
		return
	}
	if s.negotiations > 0 {
		s.setState(StateNegotiating)
	} else {
		s.setState(StateConnected)
	}
}

func (s *Session) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.mb.Post(func() { s.handleReadError(conn, err) })
			return
		}
		if !s.mb.Post(func() { s.handleMessage(data) }) {
			return
		}
	}
}

func (s *Session) handleReadError(conn Conn, err error) {
	if s.retired || s.conn != conn || errors.Is(err, ErrTransportClosed) {
		s.logger.Debug("signaling read loop stopped", "err", err)
		return
	}
	terr := &TransportError{Op: "read", Err: err}
	s.metrics.Inc(metrics.SignalingTransportErrors)
	s.logger.Error("signaling read failed", "err", err)
	if s.onTransportError != nil {
		s.invokeCallback("transport_error", func() { s.onTransportError(terr) })
	}
}

// send writes msg on the session goroutine. Write failures are logged and
// otherwise ignored; a broken connection surfaces through the read loop.
func (s *Session) send(conn Conn, msg Message) {
	data, err := MarshalMessage(msg)
	if err != nil {
		s.logger.Error("failed to encode signaling message", "type", msg.Type(), "err", err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		if s.retired || errors.Is(err, ErrTransportClosed) {
			s.logger.Debug("signaling write after close dropped", "type", msg.Type(), "err", err)
			return
		}
		s.metrics.Inc(metrics.SignalingTransportErrors)
		s.logger.Error("signaling write failed", "type", msg.Type(), "err", &TransportError{Op: "write", Err: err})
		return
	}
	s.metrics.Inc(metrics.MessageSent(string(msg.Type())))
}

func (s *Session) invokeCallback(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.Inc(metrics.CallbackPanics)
			s.logger.Error("host callback panicked", "callback", name, "panic", r)
		}
	}()
	fn()
}

func urlHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}
