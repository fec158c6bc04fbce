package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewSessionConfig_Defaults(t *testing.T) {
	cfg, err := NewSessionConfig(SessionOptions{
		SignalingURL: " wss://sora.example.com/signaling ",
		ChannelID:    "room-1",
	})
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}
	if cfg.SignalingURL() != "wss://sora.example.com/signaling" {
		t.Fatalf("SignalingURL=%q", cfg.SignalingURL())
	}
	if cfg.Role() != RoleRecvOnly {
		t.Fatalf("Role=%q, want %q", cfg.Role(), RoleRecvOnly)
	}
	if cfg.Video().CodecType != DefaultVideoCodec || cfg.Audio().CodecType != DefaultAudioCodec {
		t.Fatalf("codecs=%q/%q", cfg.Video().CodecType, cfg.Audio().CodecType)
	}
	if !strings.HasPrefix(cfg.SoraClient(), clientName+" ") {
		t.Fatalf("SoraClient=%q, want prefix %q", cfg.SoraClient(), clientName)
	}
	if !strings.HasPrefix(cfg.LibWebRTC(), "pion/webrtc ") {
		t.Fatalf("LibWebRTC=%q", cfg.LibWebRTC())
	}
	if !strings.HasPrefix(cfg.Environment(), "Go ") {
		t.Fatalf("Environment=%q", cfg.Environment())
	}
	if cfg.Metadata() != nil {
		t.Fatalf("Metadata=%q, want nil", cfg.Metadata())
	}
}

func TestNewSessionConfig_KeepsExplicitIdentity(t *testing.T) {
	cfg, err := NewSessionConfig(SessionOptions{
		ChannelID:   "room-1",
		SoraClient:  "host-app 1.0",
		LibWebRTC:   "custom",
		Environment: "test-env",
	})
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}
	if cfg.SoraClient() != "host-app 1.0" || cfg.LibWebRTC() != "custom" || cfg.Environment() != "test-env" {
		t.Fatalf("identity=%q/%q/%q", cfg.SoraClient(), cfg.LibWebRTC(), cfg.Environment())
	}
}

func TestNewSessionConfig_Rejects(t *testing.T) {
	cases := map[string]SessionOptions{
		"unknown role":       {ChannelID: "c", Role: "upstream"},
		"missing channel":    {ChannelID: "  "},
		"negative video":     {ChannelID: "c", Video: MediaOptions{BitRate: -1}},
		"negative audio":     {ChannelID: "c", Audio: MediaOptions{BitRate: -5}},
		"malformed metadata": {ChannelID: "c", Metadata: json.RawMessage(`{"a":`)},
	}
	for name, opts := range cases {
		_, err := NewSessionConfig(opts)
		if err == nil {
			t.Fatalf("%s: expected error, got nil", name)
		}
		if !errors.Is(err, ErrInvalidSessionConfig) {
			t.Fatalf("%s: err=%v, want ErrInvalidSessionConfig", name, err)
		}
	}
}

func TestNewSessionConfig_MetadataIsCopied(t *testing.T) {
	raw := json.RawMessage(`{"token":"abc"}`)
	cfg, err := NewSessionConfig(SessionOptions{ChannelID: "c", Metadata: raw})
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}

	raw[2] = 'X'
	if got := string(cfg.Metadata()); got != `{"token":"abc"}` {
		t.Fatalf("Metadata=%q after mutating input", got)
	}

	out := cfg.Metadata()
	out[2] = 'Y'
	if got := string(cfg.Metadata()); got != `{"token":"abc"}` {
		t.Fatalf("Metadata=%q after mutating accessor result", got)
	}
}

func TestNewSessionConfig_NullMetadataIsAbsent(t *testing.T) {
	cfg, err := NewSessionConfig(SessionOptions{ChannelID: "c", Metadata: json.RawMessage(" null ")})
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}
	if cfg.Metadata() != nil {
		t.Fatalf("Metadata=%q, want nil", cfg.Metadata())
	}
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{"sendonly": RoleSendOnly, " RecvOnly ": RoleRecvOnly, "sendrecv": RoleSendRecv} {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q)=%q, want %q", raw, got, want)
		}
	}
	if _, err := ParseRole("downstream"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestDefaultSoraClient(t *testing.T) {
	if got, want := DefaultSoraClient("", ""), clientName+" dev"; got != want {
		t.Fatalf("DefaultSoraClient=%q, want %q", got, want)
	}
	if got, want := DefaultSoraClient("1.2.3", "0123456789abcdef"), clientName+" 1.2.3 (0123456789ab)"; got != want {
		t.Fatalf("DefaultSoraClient=%q, want %q", got, want)
	}
}

func TestNewSessionConfig_CompactsMetadata(t *testing.T) {
	cfg, err := NewSessionConfig(SessionOptions{ChannelID: "c", Metadata: json.RawMessage("{ \"a\" : [1, 2] }")})
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}
	if got, want := string(cfg.Metadata()), `{"a":[1,2]}`; got != want {
		t.Fatalf("Metadata=%q, want %q", got, want)
	}
}
