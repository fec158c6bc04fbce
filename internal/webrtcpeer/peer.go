package webrtcpeer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/signaling"
)

var ErrPeerClosed = errors.New("peer connection closed")

// FactoryConfig configures every Peer created by a Factory.
type FactoryConfig struct {
	// API defaults to webrtc.NewAPI() with pion's defaults.
	API *webrtc.API

	// LocalTracks are attached once the remote offer has been applied.
	LocalTracks []webrtc.TrackLocal

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Track callbacks run on pion goroutines and must not block.
	OnTrackAdded   func(TrackInfo)
	OnTrackRemoved func(TrackInfo)
	// OnRTP, if set, receives every RTP packet read from a remote track.
	OnRTP func(TrackInfo, *rtp.Packet)
}

// Factory creates pion-backed media sessions for a signaling.Session.
type Factory struct {
	cfg FactoryConfig
}

func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.API == nil {
		cfg.API = webrtc.NewAPI()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Factory{cfg: cfg}
}

func (f *Factory) NewMediaSession(iceServers []webrtc.ICEServer, events signaling.MediaEvents) (signaling.MediaSession, error) {
	return NewPeer(f.cfg, iceServers, events)
}

// Peer owns one answering PeerConnection and implements
// signaling.MediaSession.
type Peer struct {
	pc      *webrtc.PeerConnection
	cfg     FactoryConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	attachOnce sync.Once
	attachErr  error

	closeOnce sync.Once
	closeErr  error
}

func NewPeer(cfg FactoryConfig, iceServers []webrtc.ICEServer, events signaling.MediaEvents) (*Peer, error) {
	api := cfg.API
	if api == nil {
		api = webrtc.NewAPI()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, err
	}
	p := &Peer{
		pc:      pc,
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Metrics,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		cand := signaling.Candidate{SDP: init.Candidate}
		if init.SDPMid != nil {
			cand.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			cand.SDPMLineIndex = *init.SDPMLineIndex
		}
		events.OnICECandidate(cand)
	})
	pc.OnICEConnectionStateChange(events.OnICEConnectionStateChange)
	pc.OnTrack(p.handleTrack)

	return p, nil
}

func (p *Peer) PeerConnection() *webrtc.PeerConnection {
	return p.pc
}

// SetRemoteDescription applies the server's offer and attaches local tracks
// the first time it succeeds.
func (p *Peer) SetRemoteDescription(sdp string) error {
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	p.attachOnce.Do(func() { p.attachErr = p.attachLocalTracks() })
	return p.attachErr
}

func (p *Peer) attachLocalTracks() error {
	for _, track := range p.cfg.LocalTracks {
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add local %s track %q: %w", track.Kind(), track.ID(), err)
		}
		// Drain RTCP so the interceptors keep running.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
		p.logger.Debug("local track attached", "track_id", track.ID(), "kind", track.Kind().String())
	}
	return nil
}

// CreateAnswer creates the answer and applies it locally. Candidates are
// trickled through OnICECandidate, so the SDP is returned without waiting
// for gathering.
func (p *Peer) CreateAnswer() (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

// GetStats returns the pion stats report as a JSON array ordered by stats id.
func (p *Peer) GetStats() (json.RawMessage, error) {
	if p.pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return nil, ErrPeerClosed
	}
	report := p.pc.GetStats()

	ids := make([]string, 0, len(report))
	for id := range report {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := make([]webrtc.Stats, 0, len(ids))
	for _, id := range ids {
		stats = append(stats, report[id])
	}
	out, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("encode stats report: %w", err)
	}
	return out, nil
}

// Close closes the PeerConnection. Remote track readers stop on their own
// and report OnTrackRemoved afterwards.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.pc.Close()
	})
	return p.closeErr
}
