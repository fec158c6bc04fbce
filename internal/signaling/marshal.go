package signaling

import "github.com/pion/webrtc/v4"

// stateMarshaller moves ICE connection-state events from the media session's
// goroutines onto the session goroutine. Events keep their emission order.
// Handoffs after the mailbox is closed are dropped silently.
type stateMarshaller struct {
	mb    *mailbox
	apply func(webrtc.ICEConnectionState)
}

func (m *stateMarshaller) Handoff(state webrtc.ICEConnectionState) {
	m.mb.Post(func() { m.apply(state) })
}
