package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVarMode      = "AERO_SIGNALING_MODE"
	envVarLogFormat = "AERO_SIGNALING_LOG_FORMAT"
	envVarLogLevel  = "AERO_SIGNALING_LOG_LEVEL"

	// Session negotiation parameters.
	envVarSignalingURL = "AERO_SIGNALING_URL"
	envVarInsecure     = "AERO_SIGNALING_INSECURE"
	envVarRole         = "AERO_SIGNALING_ROLE"
	envVarMultistream  = "AERO_SIGNALING_MULTISTREAM"
	envVarChannelID    = "AERO_SIGNALING_CHANNEL_ID"
	envVarMetadata     = "AERO_SIGNALING_METADATA"
	envVarVideoCodec   = "AERO_SIGNALING_VIDEO_CODEC"
	envVarVideoBitRate = "AERO_SIGNALING_VIDEO_BIT_RATE"
	envVarAudioCodec   = "AERO_SIGNALING_AUDIO_CODEC"
	envVarAudioBitRate = "AERO_SIGNALING_AUDIO_BIT_RATE"

	// Status server and timing.
	envVarListenAddr               = "AERO_SIGNALING_LISTEN_ADDR"
	envVarShutdownTimeout          = "AERO_SIGNALING_SHUTDOWN_TIMEOUT"
	envVarHandshakeTimeout         = "AERO_SIGNALING_HANDSHAKE_TIMEOUT"
	envVarWriteTimeout             = "AERO_SIGNALING_WRITE_TIMEOUT"
	envVarCloseTimeout             = "AERO_SIGNALING_CLOSE_TIMEOUT"
	envVarMaxSignalingMessageBytes = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarDispatchInterval         = "AERO_SIGNALING_DISPATCH_INTERVAL"

	DefaultMode                   Mode = ModeDev
	DefaultShutdown                    = 15 * time.Second
	DefaultHandshakeTimeout            = 10 * time.Second
	DefaultWriteTimeout                = 1 * time.Second
	DefaultCloseTimeout                = 2 * time.Second
	DefaultMaxSignalingMessageBytes    = int64(1 << 20) // 1MiB
	DefaultDispatchInterval            = 100 * time.Millisecond
)

const (
	envVarWebRTCUDPPortMin = "WEBRTC_UDP_PORT_MIN"
	envVarWebRTCUDPPortMax = "WEBRTC_UDP_PORT_MAX"

	envVarWebRTCNAT1To1IPs             = "WEBRTC_NAT_1TO1_IPS"
	envVarWebRTCNAT1To1IPCandidateType = "WEBRTC_NAT_1TO1_IP_CANDIDATE_TYPE"

	envVarWebRTCUDPListenIP  = "WEBRTC_UDP_LISTEN_IP"
	DefaultWebRTCUDPListenIP = "0.0.0.0"
)

const (
	flagSignalingURL = "signaling-url"
	flagChannelID    = "channel-id"

	flagWebRTCUDPPortMin = "webrtc-udp-port-min"
	flagWebRTCUDPPortMax = "webrtc-udp-port-max"

	flagWebRTCNAT1To1IPs             = "webrtc-nat-1to1-ips"
	flagWebRTCNAT1To1IPCandidateType = "webrtc-nat-1to1-ip-candidate-type"

	flagWebRTCUDPListenIP = "webrtc-udp-listen-ip"
)

// recommendedWebRTCUDPPortRangeSize is an intentionally conservative minimum.
// Running out of ports manifests as hard-to-debug connectivity failures.
const recommendedWebRTCUDPPortRangeSize = 100

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type NAT1To1IPCandidateType string

const (
	NAT1To1CandidateTypeHost  NAT1To1IPCandidateType = "host"
	NAT1To1CandidateTypeSrflx NAT1To1IPCandidateType = "srflx"
)

type UDPPortRange struct {
	Min uint16
	Max uint16
}

type Config struct {
	Mode      Mode
	LogFormat LogFormat
	LogLevel  slog.Level

	SignalingURL string
	Insecure     bool
	Role         Role
	Multistream  bool
	ChannelID    string
	// Metadata is the raw metadata string as configured. It is parsed (and
	// dropped with a warning when invalid) by the client.
	Metadata     string
	VideoCodec   string
	VideoBitRate int
	AudioCodec   string
	AudioBitRate int

	// ListenAddr is the status server address. Empty disables the server.
	ListenAddr      string
	ShutdownTimeout time.Duration

	HandshakeTimeout         time.Duration
	WriteTimeout             time.Duration
	CloseTimeout             time.Duration
	MaxSignalingMessageBytes int64

	// DispatchInterval is how often queued host events are delivered.
	DispatchInterval time.Duration

	// WebRTCUDPPortRange restricts the UDP ports used for ICE. When nil, pion uses
	// its defaults (OS ephemeral port selection).
	WebRTCUDPPortRange *UDPPortRange

	// WebRTCNAT1To1IPs configures pion to advertise these public IPs for ICE when
	// the client is behind NAT. Values must be literal IPs (no hostnames).
	WebRTCNAT1To1IPs []string

	// WebRTCNAT1To1IPCandidateType configures whether the NAT 1:1 IPs are
	// advertised as host or srflx ICE candidates.
	WebRTCNAT1To1IPCandidateType NAT1To1IPCandidateType

	// WebRTCUDPListenIP restricts which local interface address ICE will bind UDP
	// sockets to. 0.0.0.0 means "use library default" (typically all interfaces).
	WebRTCUDPListenIP net.IP
}

// SessionOptions returns the negotiation parameters for NewSessionConfig.
// Metadata and identity are left for the caller to fill in.
func (c Config) SessionOptions() SessionOptions {
	return SessionOptions{
		SignalingURL: c.SignalingURL,
		Insecure:     c.Insecure,
		Role:         c.Role,
		Multistream:  c.Multistream,
		ChannelID:    c.ChannelID,
		Video:        MediaOptions{CodecType: c.VideoCodec, BitRate: c.VideoBitRate},
		Audio:        MediaOptions{CodecType: c.AudioCodec, BitRate: c.AudioBitRate},
	}
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	signalingURL := envOrDefault(lookup, envVarSignalingURL, "")
	roleStr := envOrDefault(lookup, envVarRole, string(DefaultRole))
	channelID := envOrDefault(lookup, envVarChannelID, "")
	metadata := envOrDefault(lookup, envVarMetadata, "")
	videoCodec := envOrDefault(lookup, envVarVideoCodec, DefaultVideoCodec)
	audioCodec := envOrDefault(lookup, envVarAudioCodec, DefaultAudioCodec)
	listenAddr := envOrDefault(lookup, envVarListenAddr, "")

	insecure, err := envBoolOrDefault(lookup, envVarInsecure, false)
	if err != nil {
		return Config{}, err
	}
	multistream, err := envBoolOrDefault(lookup, envVarMultistream, false)
	if err != nil {
		return Config{}, err
	}

	videoBitRate, err := envIntOrDefault(lookup, envVarVideoBitRate, 0)
	if err != nil {
		return Config{}, err
	}
	audioBitRate, err := envIntOrDefault(lookup, envVarAudioBitRate, 0)
	if err != nil {
		return Config{}, err
	}

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	handshakeTimeout, err := envDurationOrDefault(lookup, envVarHandshakeTimeout, DefaultHandshakeTimeout)
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := envDurationOrDefault(lookup, envVarWriteTimeout, DefaultWriteTimeout)
	if err != nil {
		return Config{}, err
	}
	closeTimeout, err := envDurationOrDefault(lookup, envVarCloseTimeout, DefaultCloseTimeout)
	if err != nil {
		return Config{}, err
	}
	dispatchInterval, err := envDurationOrDefault(lookup, envVarDispatchInterval, DefaultDispatchInterval)
	if err != nil {
		return Config{}, err
	}

	maxSignalingMessageBytes := DefaultMaxSignalingMessageBytes
	if raw, ok := lookup(envVarMaxSignalingMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxSignalingMessageBytes, raw, err)
		}
		maxSignalingMessageBytes = n
	}

	var webrtcUDPPortMin uint
	if raw, ok := lookup(envVarWebRTCUDPPortMin); ok && strings.TrimSpace(raw) != "" {
		port, err := parsePortString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarWebRTCUDPPortMin, raw, err)
		}
		webrtcUDPPortMin = uint(port)
	}
	var webrtcUDPPortMax uint
	if raw, ok := lookup(envVarWebRTCUDPPortMax); ok && strings.TrimSpace(raw) != "" {
		port, err := parsePortString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarWebRTCUDPPortMax, raw, err)
		}
		webrtcUDPPortMax = uint(port)
	}
	webrtcUDPListenIPStr := envOrDefault(lookup, envVarWebRTCUDPListenIP, DefaultWebRTCUDPListenIP)
	webrtcNAT1To1IPsStr := envOrDefault(lookup, envVarWebRTCNAT1To1IPs, "")
	webrtcNAT1To1CandidateTypeStr := envOrDefault(lookup, envVarWebRTCNAT1To1IPCandidateType, string(NAT1To1CandidateTypeHost))

	fs := flag.NewFlagSet("aero-webrtc-signaling-client", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")

	fs.StringVar(&signalingURL, flagSignalingURL, signalingURL, "Signaling WebSocket URL, ws:// or wss:// (env "+envVarSignalingURL+")")
	fs.BoolVar(&insecure, "insecure", insecure, "Skip TLS certificate verification for wss:// (env "+envVarInsecure+")")
	fs.StringVar(&roleStr, "role", roleStr, "Role: sendonly, recvonly, or sendrecv (env "+envVarRole+")")
	fs.BoolVar(&multistream, "multistream", multistream, "Request a multistream session (env "+envVarMultistream+")")
	fs.StringVar(&channelID, flagChannelID, channelID, "Channel ID to join (env "+envVarChannelID+")")
	fs.StringVar(&metadata, "metadata", metadata, "JSON metadata sent with connect; invalid JSON is dropped (env "+envVarMetadata+")")
	fs.StringVar(&videoCodec, "video-codec", videoCodec, "Video codec type (env "+envVarVideoCodec+")")
	fs.IntVar(&videoBitRate, "video-bit-rate", videoBitRate, "Video bit rate in kbps (0 = server default; env "+envVarVideoBitRate+")")
	fs.StringVar(&audioCodec, "audio-codec", audioCodec, "Audio codec type (env "+envVarAudioCodec+")")
	fs.IntVar(&audioBitRate, "audio-bit-rate", audioBitRate, "Audio bit rate in kbps (0 = server default; env "+envVarAudioBitRate+")")

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "Status HTTP listen address (host:port; empty disables; env "+envVarListenAddr+")")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.DurationVar(&handshakeTimeout, "handshake-timeout", handshakeTimeout, "Signaling WebSocket handshake timeout (env "+envVarHandshakeTimeout+")")
	fs.DurationVar(&writeTimeout, "write-timeout", writeTimeout, "Signaling WebSocket write timeout (env "+envVarWriteTimeout+")")
	fs.DurationVar(&closeTimeout, "close-timeout", closeTimeout, "Max time to wait for the WebSocket close handshake (env "+envVarCloseTimeout+")")
	fs.Int64Var(&maxSignalingMessageBytes, "max-signaling-message-bytes", maxSignalingMessageBytes, "Max inbound signaling WS message size in bytes (env "+envVarMaxSignalingMessageBytes+")")
	fs.DurationVar(&dispatchInterval, "dispatch-interval", dispatchInterval, "How often queued notify/track events are dispatched (env "+envVarDispatchInterval+")")

	fs.UintVar(&webrtcUDPPortMin, flagWebRTCUDPPortMin, webrtcUDPPortMin, "Min UDP port for WebRTC ICE (0 = unset; env "+envVarWebRTCUDPPortMin+")")
	fs.UintVar(&webrtcUDPPortMax, flagWebRTCUDPPortMax, webrtcUDPPortMax, "Max UDP port for WebRTC ICE (0 = unset; env "+envVarWebRTCUDPPortMax+")")
	fs.StringVar(&webrtcUDPListenIPStr, flagWebRTCUDPListenIP, webrtcUDPListenIPStr, "Local listen IP for WebRTC ICE UDP sockets (env "+envVarWebRTCUDPListenIP+")")
	fs.StringVar(&webrtcNAT1To1IPsStr, flagWebRTCNAT1To1IPs, webrtcNAT1To1IPsStr, "Comma-separated public IPs to advertise for WebRTC ICE (env "+envVarWebRTCNAT1To1IPs+")")
	fs.StringVar(&webrtcNAT1To1CandidateTypeStr, flagWebRTCNAT1To1IPCandidateType, webrtcNAT1To1CandidateTypeStr, "Candidate type for NAT 1:1 IPs: host or srflx (env "+envVarWebRTCNAT1To1IPCandidateType+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}
	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	logLevel, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	signalingURL = strings.TrimSpace(signalingURL)
	if signalingURL == "" {
		return Config{}, fmt.Errorf("%s/--%s is required", envVarSignalingURL, flagSignalingURL)
	}
	if err := validateSignalingURL(signalingURL); err != nil {
		return Config{}, fmt.Errorf("invalid %s/--%s %q: %w", envVarSignalingURL, flagSignalingURL, signalingURL, err)
	}

	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Config{}, fmt.Errorf("%s/--%s is required", envVarChannelID, flagChannelID)
	}

	role, err := ParseRole(roleStr)
	if err != nil {
		return Config{}, fmt.Errorf("%s/--role: %w", envVarRole, err)
	}

	if videoBitRate < 0 {
		return Config{}, fmt.Errorf("%s/--video-bit-rate must be >= 0", envVarVideoBitRate)
	}
	if audioBitRate < 0 {
		return Config{}, fmt.Errorf("%s/--audio-bit-rate must be >= 0", envVarAudioBitRate)
	}
	if strings.TrimSpace(videoCodec) == "" {
		videoCodec = DefaultVideoCodec
	}
	if strings.TrimSpace(audioCodec) == "" {
		audioCodec = DefaultAudioCodec
	}

	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--shutdown-timeout must be > 0", envVarShutdownTimeout)
	}
	if handshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--handshake-timeout must be > 0", envVarHandshakeTimeout)
	}
	if writeTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--write-timeout must be > 0", envVarWriteTimeout)
	}
	if closeTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--close-timeout must be > 0", envVarCloseTimeout)
	}
	if dispatchInterval <= 0 {
		return Config{}, fmt.Errorf("%s/--dispatch-interval must be > 0", envVarDispatchInterval)
	}
	if maxSignalingMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-signaling-message-bytes must be > 0", envVarMaxSignalingMessageBytes)
	}

	var webrtcUDPPortRange *UDPPortRange
	if webrtcUDPPortMin != 0 || webrtcUDPPortMax != 0 {
		if webrtcUDPPortMin == 0 || webrtcUDPPortMax == 0 {
			return Config{}, fmt.Errorf("%s/%s and %s/%s must be set together (or both unset)",
				envVarWebRTCUDPPortMin, "--"+flagWebRTCUDPPortMin,
				envVarWebRTCUDPPortMax, "--"+flagWebRTCUDPPortMax,
			)
		}
		min, err := parsePortUint(webrtcUDPPortMin)
		if err != nil {
			return Config{}, fmt.Errorf("%s/%s: %w", envVarWebRTCUDPPortMin, "--"+flagWebRTCUDPPortMin, err)
		}
		max, err := parsePortUint(webrtcUDPPortMax)
		if err != nil {
			return Config{}, fmt.Errorf("%s/%s: %w", envVarWebRTCUDPPortMax, "--"+flagWebRTCUDPPortMax, err)
		}
		if min > max {
			return Config{}, fmt.Errorf("WebRTC UDP port range min (%d) must be <= max (%d)", min, max)
		}
		size := int(max) - int(min) + 1
		if size < recommendedWebRTCUDPPortRangeSize {
			return Config{}, fmt.Errorf("WebRTC UDP port range is too small: %d ports (min %d recommended)", size, recommendedWebRTCUDPPortRangeSize)
		}
		webrtcUDPPortRange = &UDPPortRange{Min: min, Max: max}
	}

	webrtcUDPListenIP := net.ParseIP(strings.TrimSpace(webrtcUDPListenIPStr))
	if webrtcUDPListenIP == nil {
		return Config{}, fmt.Errorf("invalid %s/%s %q", envVarWebRTCUDPListenIP, "--"+flagWebRTCUDPListenIP, webrtcUDPListenIPStr)
	}

	var webrtcNAT1To1IPs []string
	if strings.TrimSpace(webrtcNAT1To1IPsStr) != "" {
		ips, err := parseIPList(webrtcNAT1To1IPsStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s/%s %q: %w", envVarWebRTCNAT1To1IPs, "--"+flagWebRTCNAT1To1IPs, webrtcNAT1To1IPsStr, err)
		}
		webrtcNAT1To1IPs = ips
	}

	if strings.TrimSpace(webrtcNAT1To1CandidateTypeStr) == "" {
		webrtcNAT1To1CandidateTypeStr = string(NAT1To1CandidateTypeHost)
	}
	webrtcNAT1To1CandidateType, err := parseCandidateType(webrtcNAT1To1CandidateTypeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s/%s %q: %w", envVarWebRTCNAT1To1IPCandidateType, "--"+flagWebRTCNAT1To1IPCandidateType, webrtcNAT1To1CandidateTypeStr, err)
	}

	return Config{
		Mode:      mode,
		LogFormat: logFormat,
		LogLevel:  logLevel,

		SignalingURL: signalingURL,
		Insecure:     insecure,
		Role:         role,
		Multistream:  multistream,
		ChannelID:    channelID,
		Metadata:     metadata,
		VideoCodec:   strings.TrimSpace(videoCodec),
		VideoBitRate: videoBitRate,
		AudioCodec:   strings.TrimSpace(audioCodec),
		AudioBitRate: audioBitRate,

		ListenAddr:      strings.TrimSpace(listenAddr),
		ShutdownTimeout: shutdownTimeout,

		HandshakeTimeout:         handshakeTimeout,
		WriteTimeout:             writeTimeout,
		CloseTimeout:             closeTimeout,
		MaxSignalingMessageBytes: maxSignalingMessageBytes,
		DispatchInterval:         dispatchInterval,

		WebRTCUDPPortRange:           webrtcUDPPortRange,
		WebRTCNAT1To1IPs:             webrtcNAT1To1IPs,
		WebRTCNAT1To1IPCandidateType: webrtcNAT1To1CandidateType,
		WebRTCUDPListenIP:            webrtcUDPListenIP,
	}, nil
}

// validateSignalingURL only checks shape. The session re-checks the scheme
// before dialing.
func validateSignalingURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return fmt.Errorf("expected ws:// or wss://")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envBoolOrDefault(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func IsUnspecifiedIP(ip net.IP) bool {
	return ip == nil || ip.Equal(net.IPv4zero) || ip.Equal(net.IPv6zero)
}

func parsePortString(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return parsePortUint(uint(v))
}

func parsePortUint(v uint) (uint16, error) {
	if v == 0 || v > 65535 {
		return 0, fmt.Errorf("port %d out of range (1-65535)", v)
	}
	return uint16(v), nil
}

func parseCandidateType(s string) (NAT1To1IPCandidateType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(NAT1To1CandidateTypeHost):
		return NAT1To1CandidateTypeHost, nil
	case string(NAT1To1CandidateTypeSrflx):
		return NAT1To1CandidateTypeSrflx, nil
	default:
		return "", fmt.Errorf("unknown candidate type %q", s)
	}
}

func parseIPList(s string) ([]string, error) {
	var out []string
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP %q", raw)
		}
		out = append(out, ip.String())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("must include at least one IP")
	}
	return out, nil
}
