package signaling

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
)

const testTimeout = 2 * time.Second

type readResult struct {
	data []byte
	err  error
}

type fakeConn struct {
	inbound chan readResult
	written chan []byte

	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan readResult, 64),
		written: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case r := <-c.inbound:
		return r.data, r.err
	case <-c.closed:
		return nil, ErrTransportClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return ErrTransportClosed
	default:
	}
	c.written <- append([]byte(nil), data...)
	return nil
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(raw string) {
	c.inbound <- readResult{data: []byte(raw)}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu      sync.Mutex
	conn    *fakeConn
	errs    []error
	calls   int
	lastURL string
	lastTLS *tls.Config
}

func (d *fakeDialer) Dial(ctx context.Context, rawURL string, tlsConfig *tls.Config) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.lastURL = rawURL
	d.lastTLS = tlsConfig
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	return d.conn, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeMedia struct {
	iceServers []webrtc.ICEServer
	events     MediaEvents

	answer   string
	stats    json.RawMessage
	statsErr error

	// Gates block the corresponding call until closed when non-nil.
	remoteGate chan struct{}
	statsGate  chan struct{}

	remoteSDPs chan string
	statsCalls atomic.Int32
	closed     atomic.Bool
}

func (m *fakeMedia) SetRemoteDescription(sdp string) error {
	if m.remoteGate != nil {
		<-m.remoteGate
	}
	m.remoteSDPs <- sdp
	return nil
}

func (m *fakeMedia) CreateAnswer() (string, error) {
	return m.answer, nil
}

func (m *fakeMedia) GetStats() (json.RawMessage, error) {
	m.statsCalls.Add(1)
	if m.statsGate != nil {
		<-m.statsGate
	}
	return m.stats, m.statsErr
}

func (m *fakeMedia) Close() error {
	m.closed.Store(true)
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	created chan *fakeMedia

	// configure, if set, adjusts each new fakeMedia before it is returned.
	configure func(m *fakeMedia)
	err       error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{created: make(chan *fakeMedia, 16)}
}

func (f *fakeFactory) NewMediaSession(iceServers []webrtc.ICEServer, events MediaEvents) (MediaSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	m := &fakeMedia{
		iceServers: iceServers,
		events:     events,
		answer:     "v=0 answer",
		stats:      json.RawMessage(`[{"id":"RTCTransport_0","type":"transport"}]`),
		remoteSDPs: make(chan string, 16),
	}
	if f.configure != nil {
		f.configure(m)
	}
	f.created <- m
	return m, nil
}

type testSession struct {
	*Session
	conn    *fakeConn
	dialer  *fakeDialer
	factory *fakeFactory
	metrics *metrics.Metrics

	notifyMu sync.Mutex
	notifies []string
	errs     chan error
}

func newTestSession(t *testing.T, opts config.SessionOptions) *testSession {
	t.Helper()

	if opts.SignalingURL == "" {
		opts.SignalingURL = "ws://127.0.0.1:5000/signaling"
	}
	if opts.ChannelID == "" {
		opts.ChannelID = "room-1"
	}
	sessCfg, err := config.NewSessionConfig(opts)
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}

	ts := &testSession{
		conn:    newFakeConn(),
		factory: newFakeFactory(),
		metrics: metrics.New(),
		errs:    make(chan error, 4),
	}
	ts.dialer = &fakeDialer{conn: ts.conn}

	s, err := NewSession(Config{
		Session: sessCfg,
		Dialer:  ts.dialer,
		Media:   ts.factory,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: ts.metrics,
		OnNotify: func(raw string) {
			ts.notifyMu.Lock()
			ts.notifies = append(ts.notifies, raw)
			ts.notifyMu.Unlock()
		},
		OnTransportError: func(err error) { ts.errs <- err },
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ts.Session = s
	t.Cleanup(func() {
		_ = s.Close()
		select {
		case <-s.Done():
		case <-time.After(testTimeout):
			t.Errorf("session did not finish closing")
		}
	})
	return ts
}

// connect connects and consumes the connect message.
func (ts *testSession) connect(t *testing.T) {
	t.Helper()
	if err := ts.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	msg := ts.nextWritten(t)
	if _, ok := msg.(ConnectMessage); !ok {
		t.Fatalf("first message=%T, want ConnectMessage", msg)
	}
}

// offer delivers an offer and waits for the media session and the answer.
func (ts *testSession) offer(t *testing.T) *fakeMedia {
	t.Helper()
	ts.conn.deliver(`{"type":"offer","sdp":"v=0 offer","config":{"iceServers":[]}}`)
	media := ts.nextMedia(t)
	if _, ok := ts.nextWritten(t).(AnswerMessage); !ok {
		t.Fatalf("expected answer after offer")
	}
	return media
}

// iceConnected reports Connected from media and waits for it to apply.
func (ts *testSession) iceConnected(t *testing.T, media *fakeMedia) {
	t.Helper()
	media.events.OnICEConnectionStateChange(webrtc.ICEConnectionStateConnected)
	waitFor(t, "ice connected", func() bool {
		return ts.ConnectionState() == webrtc.ICEConnectionStateConnected
	})
}

func (ts *testSession) nextWritten(t *testing.T) Message {
	t.Helper()
	raw := ts.nextWrittenRaw(t)
	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("parse written %q: %v", raw, err)
	}
	return msg
}

func (ts *testSession) nextWrittenRaw(t *testing.T) []byte {
	t.Helper()
	select {
	case raw := <-ts.conn.written:
		return raw
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for outbound message")
		return nil
	}
}

func (ts *testSession) expectNoWrite(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case raw := <-ts.conn.written:
		t.Fatalf("unexpected outbound message %s", raw)
	case <-time.After(wait):
	}
}

func (ts *testSession) nextMedia(t *testing.T) *fakeMedia {
	t.Helper()
	select {
	case m := <-ts.factory.created:
		return m
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for media session")
		return nil
	}
}

func (ts *testSession) waitReceived(t *testing.T, typ MessageType, n uint64) {
	t.Helper()
	waitFor(t, "received "+string(typ), func() bool {
		return ts.metrics.Get(metrics.MessageReceived(string(typ))) >= n
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errTestDial = errors.New("connection refused")
