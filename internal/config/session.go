package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSessionConfig is wrapped by every error returned from
// NewSessionConfig.
var ErrInvalidSessionConfig = errors.New("invalid session config")

// Role is the media direction requested in the connect message.
type Role string

const (
	RoleSendOnly Role = "sendonly"
	RoleRecvOnly Role = "recvonly"
	RoleSendRecv Role = "sendrecv"
)

const (
	DefaultRole       = RoleRecvOnly
	DefaultVideoCodec = "VP8"
	DefaultAudioCodec = "OPUS"
)

func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleSendOnly):
		return RoleSendOnly, nil
	case string(RoleRecvOnly):
		return RoleRecvOnly, nil
	case string(RoleSendRecv):
		return RoleSendRecv, nil
	default:
		return "", fmt.Errorf("invalid role %q (expected %s, %s, or %s)", raw, RoleSendOnly, RoleRecvOnly, RoleSendRecv)
	}
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSendOnly, RoleRecvOnly, RoleSendRecv:
		return true
	default:
		return false
	}
}

// MediaOptions describes one media kind in the connect message. A zero
// BitRate is left off the wire.
type MediaOptions struct {
	CodecType string
	BitRate   int
}

// SessionOptions is the mutable input to NewSessionConfig.
type SessionOptions struct {
	SignalingURL string
	Insecure     bool
	Role         Role
	Multistream  bool
	ChannelID    string

	// Empty identity fields are filled from DefaultSoraClient,
	// DefaultLibWebRTC and DefaultEnvironment.
	SoraClient  string
	LibWebRTC   string
	Environment string

	// Metadata must be valid JSON and is stored compacted. Nil (or a literal
	// null) means absent.
	Metadata json.RawMessage

	Video MediaOptions
	Audio MediaOptions
}

// SessionConfig is the negotiation parameter set of a single signaling
// session. It is built once by NewSessionConfig and never mutated; accessors
// hand out copies.
type SessionConfig struct {
	signalingURL string
	insecure     bool
	role         Role
	multistream  bool
	channelID    string
	soraClient   string
	libWebRTC    string
	environment  string
	metadata     json.RawMessage
	video        MediaOptions
	audio        MediaOptions
}

func NewSessionConfig(opts SessionOptions) (SessionConfig, error) {
	role := opts.Role
	if role == "" {
		role = DefaultRole
	}
	if !role.Valid() {
		return SessionConfig{}, fmt.Errorf("%w: unknown role %q", ErrInvalidSessionConfig, opts.Role)
	}
	channelID := strings.TrimSpace(opts.ChannelID)
	if channelID == "" {
		return SessionConfig{}, fmt.Errorf("%w: channel id is required", ErrInvalidSessionConfig)
	}
	if opts.Video.BitRate < 0 {
		return SessionConfig{}, fmt.Errorf("%w: video bit rate must be >= 0, got %d", ErrInvalidSessionConfig, opts.Video.BitRate)
	}
	if opts.Audio.BitRate < 0 {
		return SessionConfig{}, fmt.Errorf("%w: audio bit rate must be >= 0, got %d", ErrInvalidSessionConfig, opts.Audio.BitRate)
	}

	var metadata json.RawMessage
	if raw := bytes.TrimSpace(opts.Metadata); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return SessionConfig{}, fmt.Errorf("%w: metadata is not valid JSON: %v", ErrInvalidSessionConfig, err)
		}
		metadata = json.RawMessage(buf.Bytes())
	}

	video := opts.Video
	if strings.TrimSpace(video.CodecType) == "" {
		video.CodecType = DefaultVideoCodec
	}
	audio := opts.Audio
	if strings.TrimSpace(audio.CodecType) == "" {
		audio.CodecType = DefaultAudioCodec
	}

	cfg := SessionConfig{
		signalingURL: strings.TrimSpace(opts.SignalingURL),
		insecure:     opts.Insecure,
		role:         role,
		multistream:  opts.Multistream,
		channelID:    channelID,
		soraClient:   opts.SoraClient,
		libWebRTC:    opts.LibWebRTC,
		environment:  opts.Environment,
		metadata:     metadata,
		video:        video,
		audio:        audio,
	}
	if cfg.soraClient == "" {
		cfg.soraClient = DefaultSoraClient("", "")
	}
	if cfg.libWebRTC == "" {
		cfg.libWebRTC = DefaultLibWebRTC()
	}
	if cfg.environment == "" {
		cfg.environment = DefaultEnvironment()
	}
	return cfg, nil
}

func (c SessionConfig) SignalingURL() string { return c.signalingURL }
func (c SessionConfig) Insecure() bool       { return c.insecure }
func (c SessionConfig) Role() Role           { return c.role }
func (c SessionConfig) Multistream() bool    { return c.multistream }
func (c SessionConfig) ChannelID() string    { return c.channelID }
func (c SessionConfig) SoraClient() string   { return c.soraClient }
func (c SessionConfig) LibWebRTC() string    { return c.libWebRTC }
func (c SessionConfig) Environment() string  { return c.environment }
func (c SessionConfig) Video() MediaOptions  { return c.video }
func (c SessionConfig) Audio() MediaOptions  { return c.audio }

// Metadata returns a copy of the configured metadata, or nil when absent.
func (c SessionConfig) Metadata() json.RawMessage {
	if c.metadata == nil {
		return nil
	}
	return append(json.RawMessage(nil), c.metadata...)
}
