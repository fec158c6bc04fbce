package signaling

import (
	"errors"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
)

func (s *Session) handleMessage(data []byte) {
	if s.retired || s.conn == nil {
		return
	}

	msg, err := ParseMessage(data)
	if err != nil {
		if errors.Is(err, ErrUnknownMessageType) {
			s.metrics.Inc(metrics.SignalingUnknownType)
			s.logger.Debug("ignoring signaling message of unknown type", "err", err)
			return
		}
		s.metrics.Inc(metrics.SignalingUnparseable)
		s.logger.Warn("ignoring unparseable signaling message", "err", err, "bytes", len(data))
		return
	}
	s.metrics.Inc(metrics.MessageReceived(string(msg.Type())))

	switch m := msg.(type) {
	case OfferMessage:
		s.handleOffer(m)
	case UpdateMessage:
		s.handleUpdate(m)
	case NotifyMessage:
		s.handleNotify(m)
	case PingMessage:
		s.handlePing(m)
	default:
		s.metrics.Inc(metrics.SignalingIgnored)
		s.logger.Debug("ignoring unexpected inbound signaling message", "type", msg.Type())
	}
}

// handleOffer creates a media session for the offer, replacing any current
// one. The ICE connection state is left alone: only state events from the
// new media session move it.
func (s *Session) handleOffer(m OfferMessage) {
	if old := s.media; old != nil {
		s.logger.Info("offer received with an active media session; replacing it")
		s.retireMedia()
		go func() {
			if err := old.Close(); err != nil {
				s.logger.Debug("replaced media session close failed", "err", err)
			}
		}()
	}

	events := &mediaEvents{s: s, conn: s.conn}
	events.marshaller = &stateMarshaller{
		mb:    s.mb,
		apply: func(state webrtc.ICEConnectionState) { s.applyConnectionState(events, state) },
	}

	media, err := s.factory.NewMediaSession(m.ICEServers, events)
	if err != nil {
		s.metrics.Inc(metrics.NegotiationErrors)
		s.logger.Error("failed to create media session", "err", err, "ice_servers", len(m.ICEServers))
		return
	}
	events.owner = media
	s.media = media
	s.events = events
	s.metrics.Inc(metrics.MediaSessions)
	s.logger.Info("media session created", "ice_servers", len(m.ICEServers))

	s.negotiate(media, m.SDP, func(sdp string) Message { return AnswerMessage{SDP: sdp} })
}

func (s *Session) handleUpdate(m UpdateMessage) {
	if s.media == nil {
		s.metrics.Inc(metrics.SignalingIgnored)
		s.logger.Warn("ignoring update without a media session")
		return
	}
	s.negotiate(s.media, m.SDP, func(sdp string) Message { return UpdateMessage{SDP: sdp} })
}

// negotiate applies a remote offer and sends the reply built from the local
// answer. Both media calls run off the session goroutine; each completion is
// dropped if the session retired or media was replaced in the meantime.
func (s *Session) negotiate(media MediaSession, remoteSDP string, reply func(sdp string) Message) {
	s.beginNegotiation()
	go func() {
		err := media.SetRemoteDescription(remoteSDP)
		s.mb.Post(func() {
			if !s.isCurrent(media) {
				s.endNegotiation()
				return
			}
			if err != nil {
				s.metrics.Inc(metrics.NegotiationErrors)
				s.logger.Error("failed to set remote description", "err", err)
				s.endNegotiation()
				return
			}
			go func() {
				answer, err := media.CreateAnswer()
				s.mb.Post(func() {
					defer s.endNegotiation()
					if !s.isCurrent(media) {
						return
					}
					if err != nil {
						s.metrics.Inc(metrics.NegotiationErrors)
						s.logger.Error("failed to create answer", "err", err)
						return
					}
					s.send(s.conn, reply(answer))
				})
			}()
		})
	}()
}

// isCurrent reports whether a completion issued against media may still
// touch the session.
func (s *Session) isCurrent(media MediaSession) bool {
	if s.retired || s.media != media {
		s.metrics.Inc(metrics.StaleCompletions)
		s.logger.Debug("discarding completion for a retired session or replaced media session")
		return false
	}
	return true
}

func (s *Session) handleNotify(m NotifyMessage) {
	if s.onNotify == nil {
		return
	}
	raw := string(m.Raw)
	s.invokeCallback("notify", func() { s.onNotify(raw) })
}

func (s *Session) handlePing(m PingMessage) {
	if s.iceState != webrtc.ICEConnectionStateConnected {
		s.metrics.Inc(metrics.PingsDropped)
		s.logger.Debug("dropping ping before ice connected", "ice_state", s.iceState.String())
		return
	}
	if !m.Stats || s.media == nil {
		s.send(s.conn, PongMessage{})
		return
	}

	media := s.media
	go func() {
		report, err := media.GetStats()
		s.mb.Post(func() {
			if s.retired || s.conn == nil {
				return
			}
			if !s.isCurrent(media) {
				// Media was replaced mid-fetch; answer with a bare pong.
				report, err = nil, nil
			}
			if err != nil {
				s.metrics.Inc(metrics.StatsErrors)
				s.logger.Warn("failed to collect stats for pong", "err", err)
				report = nil
			}
			s.send(s.conn, PongMessage{Stats: report})
		})
	}()
}

// applyConnectionState runs on the session goroutine for every handed-off
// ICE state event.
func (s *Session) applyConnectionState(ev *mediaEvents, state webrtc.ICEConnectionState) {
	if s.retired || ev.owner == nil || ev.owner != s.media {
		return
	}
	old := s.iceState
	if old == webrtc.ICEConnectionStateClosed || old == state {
		return
	}
	s.logger.Info("ice connection state changed", "old_state", old.String(), "new_state", state.String())
	s.iceState = state
	s.metrics.Inc(metrics.ICEStateTransitions)
	s.metrics.Inc(metrics.ICEState(state.String()))
}

// retireMedia detaches the current media session from the session. Its
// events stop reaching the connection; the caller closes it.
func (s *Session) retireMedia() {
	if s.events != nil {
		s.events.stale.Store(true)
		s.events = nil
	}
	s.media = nil
}

// mediaEvents is handed to one MediaSession. Candidates are written straight
// to the connection from the emitting goroutine; state changes go through
// the marshaller.
type mediaEvents struct {
	s          *Session
	conn       Conn
	marshaller *stateMarshaller

	// owner is set on the session goroutine once the media session exists
	// and only read there.
	owner MediaSession

	// stale is set once the media session was replaced or the session
	// retired. Read from pion's goroutines.
	stale atomic.Bool
}

func (ev *mediaEvents) OnICECandidate(c Candidate) {
	if ev.stale.Load() {
		ev.s.metrics.Inc(metrics.StaleCandidates)
		ev.s.logger.Debug("dropping candidate from a replaced media session")
		return
	}
	data, err := MarshalMessage(CandidateMessage{Candidate: c.SDP})
	if err != nil {
		ev.s.logger.Error("failed to encode candidate", "err", err)
		return
	}
	if err := ev.conn.WriteMessage(data); err != nil {
		ev.s.logger.Debug("candidate not sent", "err", err)
		return
	}
	ev.s.metrics.Inc(metrics.CandidatesSent)
	ev.s.metrics.Inc(metrics.MessageSent(string(MessageTypeCandidate)))
}

func (ev *mediaEvents) OnICEConnectionStateChange(state webrtc.ICEConnectionState) {
	ev.marshaller.Handoff(state)
}
