package metrics

import "sync"

// Counter names. Per-type message counters are built with MessageReceived and
// MessageSent.
const (
	SignalingConnects        = "signaling_connects"
	SignalingDialErrors      = "signaling_dial_errors"
	SignalingTransportErrors = "signaling_transport_errors"
	SignalingUnparseable     = "signaling_unparseable_messages"
	SignalingUnknownType     = "signaling_unknown_type_messages"
	SignalingIgnored         = "signaling_ignored_messages"
	PingsDropped             = "signaling_pings_dropped_not_connected"
	StaleCompletions         = "signaling_stale_completions"
	NegotiationErrors        = "signaling_negotiation_errors"
	StatsErrors              = "signaling_stats_errors"
	CandidatesSent           = "signaling_candidates_sent"
	StaleCandidates          = "signaling_stale_candidates_dropped"
	CallbackPanics           = "signaling_callback_panics"

	ICEStateTransitions = "webrtc_ice_state_transitions"
	MediaSessions       = "webrtc_media_sessions_created"
	RemoteTracksAdded   = "webrtc_remote_tracks_added"
	RemoteTracksRemoved = "webrtc_remote_tracks_removed"
	RTPPacketsReceived  = "webrtc_rtp_packets_received"
	RTPBytesReceived    = "webrtc_rtp_bytes_received"
	PLISent             = "webrtc_pli_sent"

	HostEventsQueued     = "client_host_events_queued"
	HostEventsDispatched = "client_host_events_dispatched"
	MetadataDropped      = "client_metadata_dropped"
)

func MessageReceived(typ string) string { return "signaling_received_" + typ }

func MessageSent(typ string) string { return "signaling_sent_" + typ }

func ICEState(state string) string { return "webrtc_ice_state_" + state }

// Metrics is a minimal, concurrency-safe counter registry.
//
// A nil *Metrics is valid and discards everything.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return map[string]uint64{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
