package signaling

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Candidate is a locally gathered ICE candidate.
type Candidate struct {
	SDPMid        string
	SDPMLineIndex uint16
	// SDP is the candidate line, e.g. "candidate:1 1 udp ...".
	SDP string
}

// MediaEvents receives events from a MediaSession. Both methods may be
// called from any goroutine.
type MediaEvents interface {
	OnICECandidate(c Candidate)
	OnICEConnectionStateChange(state webrtc.ICEConnectionState)
}

// MediaSession is the media side of a negotiated session. Its methods block
// and are never called from the session goroutine.
type MediaSession interface {
	SetRemoteDescription(sdp string) error
	CreateAnswer() (string, error)
	// GetStats returns a JSON stats report.
	GetStats() (json.RawMessage, error)
	Close() error
}

type MediaFactory interface {
	NewMediaSession(iceServers []webrtc.ICEServer, events MediaEvents) (MediaSession, error)
}
