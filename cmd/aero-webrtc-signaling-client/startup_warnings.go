package main

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
)

func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Insecure {
		logger.Warn("startup security warning: AERO_SIGNALING_INSECURE=true disables TLS certificate verification for wss:// signaling",
			"warning_code", "insecure_tls",
			"signaling_host", safeURLHost(cfg.SignalingURL),
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && urlScheme(cfg.SignalingURL) == "ws" {
		logger.Warn("startup security warning: plaintext ws:// signaling while --mode=prod (metadata and SDP are sent unencrypted)",
			"warning_code", "plaintext_signaling_in_prod",
			"signaling_host", safeURLHost(cfg.SignalingURL),
			"mode", cfg.Mode,
		)
	}

	if cfg.ListenAddr != "" && listensOnAllInterfaces(cfg.ListenAddr) {
		logger.Warn("startup security warning: status server listens on all interfaces (exposes /metrics and /version)",
			"warning_code", "status_listen_all_interfaces",
			"listen_addr", cfg.ListenAddr,
			"mode", cfg.Mode,
		)
	}

	// The CLI has no capture source, so a sending role negotiates tracks that
	// never carry media.
	if cfg.Role == config.RoleSendOnly || cfg.Role == config.RoleSendRecv {
		logger.Warn("startup warning: role sends media but no local tracks are attached",
			"warning_code", "role_sends_without_local_tracks",
			"role", cfg.Role,
			"mode", cfg.Mode,
		)
	}

	if cfg.CloseTimeout > 0 && cfg.CloseTimeout < 100*time.Millisecond {
		logger.Warn("startup warning: AERO_SIGNALING_CLOSE_TIMEOUT is very small (the server may not see a clean close)",
			"warning_code", "close_timeout_small",
			"close_timeout", cfg.CloseTimeout,
			"mode", cfg.Mode,
		)
	}
	if cfg.HandshakeTimeout > 0 && cfg.HandshakeTimeout < time.Second {
		logger.Warn("startup warning: AERO_SIGNALING_HANDSHAKE_TIMEOUT is very small (connects over slow links will fail)",
			"warning_code", "handshake_timeout_small",
			"handshake_timeout", cfg.HandshakeTimeout,
			"mode", cfg.Mode,
		)
	}
}

func listensOnAllInterfaces(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && config.IsUnspecifiedIP(ip)
}

func urlScheme(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func safeURLHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}
