package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/webrtcpeer"
)

func TestConsole_PrintsHostEvents(t *testing.T) {
	var buf bytes.Buffer
	con := newConsole(&buf, true)

	sessCfg, err := config.NewSessionConfig(config.SessionOptions{
		SignalingURL: "wss://sora.example.com/signaling",
		ChannelID:    "room-1",
		SoraClient:   "aero-webrtc-signaling-client test",
	})
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}

	con.banner(sessCfg)
	con.notify(`{"type":"notify","event_type":"connection.created"}`)
	con.trackAdded(webrtcpeer.TrackInfo{ID: "t1", Kind: "video", MimeType: "video/VP8", SSRC: 42, StreamID: "s1"})
	con.trackRemoved(webrtcpeer.TrackInfo{ID: "t1", Kind: "video"})
	con.transportError(errors.New("read: EOF"))

	out := buf.String()
	for _, want := range []string{
		"aero-webrtc-signaling-client test",
		"channel room-1 as recvonly (multistream=false) via sora.example.com",
		`notify {"type":"notify","event_type":"connection.created"}`,
		"track added id=t1 kind=video codec=video/VP8 ssrc=42 stream=s1",
		"track removed id=t1 kind=video",
		"signaling connection lost: read: EOF",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%s", want, out)
		}
	}
}
