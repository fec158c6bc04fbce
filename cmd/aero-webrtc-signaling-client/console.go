package main

import (
	"io"

	"github.com/pterm/pterm"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/webrtcpeer"
)

// console prints host events for a human watching the session. Structured
// logs stay on the slog logger.
type console struct {
	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	fail    *pterm.PrefixPrinter
}

// newConsole writes to w. plain drops colors and styling.
func newConsole(w io.Writer, plain bool) *console {
	if plain {
		pterm.DisableStyling()
	}
	return &console{
		info:    pterm.Info.WithWriter(w),
		success: pterm.Success.WithWriter(w),
		warning: pterm.Warning.WithWriter(w),
		fail:    pterm.Error.WithWriter(w),
	}
}

func (c *console) banner(sessCfg config.SessionConfig) {
	c.info.Printfln("%s", sessCfg.SoraClient())
	c.info.Printfln("channel %s as %s (multistream=%t) via %s",
		sessCfg.ChannelID(), sessCfg.Role(), sessCfg.Multistream(), safeURLHost(sessCfg.SignalingURL()))
}

func (c *console) notify(raw string) {
	c.info.Printfln("notify %s", raw)
}

func (c *console) trackAdded(t webrtcpeer.TrackInfo) {
	c.success.Printfln("track added id=%s kind=%s codec=%s ssrc=%d stream=%s", t.ID, t.Kind, t.MimeType, t.SSRC, t.StreamID)
}

func (c *console) trackRemoved(t webrtcpeer.TrackInfo) {
	c.warning.Printfln("track removed id=%s kind=%s", t.ID, t.Kind)
}

func (c *console) transportError(err error) {
	c.fail.Printfln("signaling connection lost: %v", err)
}
