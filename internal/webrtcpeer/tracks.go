package webrtcpeer

import (
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/metrics"
)

// TrackInfo identifies a remote track for host callbacks.
type TrackInfo struct {
	// ID is the track id from the remote msid, or a generated uuid when the
	// offer carries none.
	ID       string
	StreamID string
	Kind     string
	MimeType string
	SSRC     uint32
}

func trackInfo(track *webrtc.TrackRemote) TrackInfo {
	id := track.ID()
	if id == "" {
		id = uuid.NewString()
	}
	return TrackInfo{
		ID:       id,
		StreamID: track.StreamID(),
		Kind:     track.Kind().String(),
		MimeType: track.Codec().MimeType,
		SSRC:     uint32(track.SSRC()),
	}
}

// handleTrack reads a remote track until it ends. Video tracks get one PLI
// on arrival so the sender starts with a keyframe.
func (p *Peer) handleTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	info := trackInfo(track)
	logger := p.logger.With("track_id", info.ID, "kind", info.Kind, "mime_type", info.MimeType, "ssrc", info.SSRC)

	p.metrics.Inc(metrics.RemoteTracksAdded)
	logger.Info("remote track added")
	if p.cfg.OnTrackAdded != nil {
		p.cfg.OnTrackAdded(info)
	}

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		if err := p.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: info.SSRC}}); err != nil {
			logger.Debug("failed to request keyframe", "err", err)
		} else {
			p.metrics.Inc(metrics.PLISent)
		}
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("remote track read stopped", "err", err)
			}
			break
		}
		p.metrics.Inc(metrics.RTPPacketsReceived)
		p.metrics.Add(metrics.RTPBytesReceived, uint64(len(pkt.Payload)))
		if p.cfg.OnRTP != nil {
			p.cfg.OnRTP(info, pkt)
		}
	}

	p.metrics.Inc(metrics.RemoteTracksRemoved)
	logger.Info("remote track removed")
	if p.cfg.OnTrackRemoved != nil {
		p.cfg.OnTrackRemoved(info)
	}
}
