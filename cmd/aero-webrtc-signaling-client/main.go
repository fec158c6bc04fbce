package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/client"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/webrtcpeer"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildVersion = ""
	buildCommit  = ""
	buildTime    = ""
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	slog.SetDefault(logger)

	commit, builtAt := resolveBuildInfo(buildCommit, buildTime)
	m := metrics.New()

	sessCfg, err := client.SessionConfig(cfg, buildVersion, commit, logger, m)
	if err != nil {
		logger.Error("invalid session configuration", "err", err)
		return 2
	}

	// Construct the WebRTC API early so misconfigurations are caught on startup.
	// No ICE sockets exist until the first offer arrives.
	api, err := webrtcpeer.NewAPI(cfg, logger)
	if err != nil {
		logger.Error("failed to configure webrtc", "err", err)
		return 2
	}

	logger.Info("starting aero-webrtc-signaling-client",
		"mode", cfg.Mode,
		"signaling_host", safeURLHost(cfg.SignalingURL),
		"channel_id", sessCfg.ChannelID(),
		"role", sessCfg.Role(),
		"multistream", sessCfg.Multistream(),
		"sora_client", sessCfg.SoraClient(),
		"listen_addr", cfg.ListenAddr,
		"dispatch_interval", cfg.DispatchInterval,
	)
	logStartupWarnings(logger, cfg)

	con := newConsole(os.Stderr, cfg.LogFormat == config.LogFormatJSON)
	con.banner(sessCfg)

	c, err := client.New(client.Options{
		Config:  cfg,
		Session: sessCfg,
		API:     api,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		logger.Error("failed to create signaling client", "err", err)
		return 2
	}

	transportErrCh := make(chan error, 1)
	c.SetOnNotify(con.notify)
	c.SetOnAddTrack(con.trackAdded)
	c.SetOnRemoveTrack(con.trackRemoved)
	c.SetOnTransportError(func(err error) {
		con.transportError(err)
		select {
		case transportErrCh <- err:
		default:
		}
	})

	var srv *httpserver.Server
	srvErrCh := make(chan error, 1)
	if cfg.ListenAddr != "" {
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			logger.Error("failed to listen", "err", err)
			return 1
		}
		srv = httpserver.New(cfg, logger, httpserver.BuildInfo{
			Version:    buildVersion,
			Commit:     commit,
			BuildTime:  builtAt,
			SoraClient: sessCfg.SoraClient(),
		}, httpserver.Options{
			Readiness: c.Ready,
			Metrics:   m,
		})
		go func() {
			srvErrCh <- srv.Serve(ln)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if err := c.Connect(ctx); err != nil {
		logger.Error("failed to connect", "err", err)
		con.transportError(err)
		exitCode = 1
		if client.IsConfigurationError(err) {
			exitCode = 2
		}
	} else {
		exitCode = dispatchUntilDone(ctx, logger, c, cfg.DispatchInterval, transportErrCh, srvErrCh)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = c.Close()
	select {
	case <-c.Done():
	case <-shutdownCtx.Done():
		logger.Warn("signaling session did not close before the shutdown timeout", "timeout", cfg.ShutdownTimeout)
	}
	c.DispatchEvents()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown failed", "err", err)
		}
		if err := <-srvErrCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server exited after shutdown", "err", err)
			exitCode = 1
		}
	}
	return exitCode
}

// dispatchUntilDone delivers host events on the calling goroutine until a
// shutdown signal, a transport failure, or a status server failure.
func dispatchUntilDone(ctx context.Context, logger *slog.Logger, c *client.Client, interval time.Duration, transportErrCh <-chan error, srvErrCh chan error) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DispatchEvents()
		case err := <-transportErrCh:
			logger.Error("signaling transport failed", "err", err)
			return 1
		case err := <-srvErrCh:
			// Hand the result back for the shutdown path.
			srvErrCh <- err
			logger.Error("status server exited", "err", err)
			return 1
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return 0
		}
	}
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
