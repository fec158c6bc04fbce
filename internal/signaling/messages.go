package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-signaling-client/internal/config"
)

type MessageType string

const (
	MessageTypeConnect   MessageType = "connect"
	MessageTypeOffer     MessageType = "offer"
	MessageTypeAnswer    MessageType = "answer"
	MessageTypeUpdate    MessageType = "update"
	MessageTypeCandidate MessageType = "candidate"
	MessageTypeNotify    MessageType = "notify"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
)

// Message is one signaling message. The set of implementations is closed.
type Message interface {
	Type() MessageType
	isMessage()
}

type MediaParams struct {
	CodecType string
	// BitRate is omitted from the wire when zero.
	BitRate int
}

type ConnectMessage struct {
	Role        config.Role
	Multistream bool
	ChannelID   string
	SoraClient  string
	LibWebRTC   string
	Environment string
	// Metadata is embedded verbatim. Nil means absent.
	Metadata json.RawMessage
	Video    MediaParams
	Audio    MediaParams
}

type OfferMessage struct {
	SDP        string
	ICEServers []webrtc.ICEServer
}

type AnswerMessage struct {
	SDP string
}

type UpdateMessage struct {
	SDP string
}

type CandidateMessage struct {
	Candidate string
}

// NotifyMessage keeps the message exactly as received.
type NotifyMessage struct {
	Raw json.RawMessage
}

type PingMessage struct {
	Stats bool
}

type PongMessage struct {
	// Stats is embedded verbatim. Nil sends a bare pong.
	Stats json.RawMessage
}

func (ConnectMessage) Type() MessageType   { return MessageTypeConnect }
func (OfferMessage) Type() MessageType     { return MessageTypeOffer }
func (AnswerMessage) Type() MessageType    { return MessageTypeAnswer }
func (UpdateMessage) Type() MessageType    { return MessageTypeUpdate }
func (CandidateMessage) Type() MessageType { return MessageTypeCandidate }
func (NotifyMessage) Type() MessageType    { return MessageTypeNotify }
func (PingMessage) Type() MessageType      { return MessageTypePing }
func (PongMessage) Type() MessageType      { return MessageTypePong }

func (ConnectMessage) isMessage()   {}
func (OfferMessage) isMessage()     {}
func (AnswerMessage) isMessage()    {}
func (UpdateMessage) isMessage()    {}
func (CandidateMessage) isMessage() {}
func (NotifyMessage) isMessage()    {}
func (PingMessage) isMessage()      {}
func (PongMessage) isMessage()      {}

// ConnectFromConfig builds the connect message for cfg.
func ConnectFromConfig(cfg config.SessionConfig) ConnectMessage {
	video, audio := cfg.Video(), cfg.Audio()
	return ConnectMessage{
		Role:        cfg.Role(),
		Multistream: cfg.Multistream(),
		ChannelID:   cfg.ChannelID(),
		SoraClient:  cfg.SoraClient(),
		LibWebRTC:   cfg.LibWebRTC(),
		Environment: cfg.Environment(),
		Metadata:    cfg.Metadata(),
		Video:       MediaParams{CodecType: video.CodecType, BitRate: video.BitRate},
		Audio:       MediaParams{CodecType: audio.CodecType, BitRate: audio.BitRate},
	}
}

type mediaJSON struct {
	CodecType string `json:"codec_type"`
	BitRate   int    `json:"bit_rate,omitempty"`
}

type connectJSON struct {
	Type        MessageType     `json:"type"`
	Role        config.Role     `json:"role"`
	Multistream bool            `json:"multistream"`
	ChannelID   string          `json:"channel_id"`
	SoraClient  string          `json:"sora_client"`
	LibWebRTC   string          `json:"libwebrtc"`
	Environment string          `json:"environment"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Video       *mediaJSON      `json:"video"`
	Audio       *mediaJSON      `json:"audio"`
}

// connectHeadJSON and connectMediaJSON are the connect fields before and
// after metadata, which MarshalMessage splices in unchanged.
type connectHeadJSON struct {
	Type        MessageType `json:"type"`
	Role        config.Role `json:"role"`
	Multistream bool        `json:"multistream"`
	ChannelID   string      `json:"channel_id"`
	SoraClient  string      `json:"sora_client"`
	LibWebRTC   string      `json:"libwebrtc"`
	Environment string      `json:"environment"`
}

type connectMediaJSON struct {
	Video *mediaJSON `json:"video"`
	Audio *mediaJSON `json:"audio"`
}

type offerConfigJSON struct {
	ICEServers *[]iceServerJSON `json:"iceServers"`
}

type offerJSON struct {
	Type   MessageType      `json:"type"`
	SDP    *string          `json:"sdp"`
	Config *offerConfigJSON `json:"config"`
}

type sdpJSON struct {
	Type MessageType `json:"type"`
	SDP  *string     `json:"sdp"`
}

type candidateJSON struct {
	Type      MessageType `json:"type"`
	Candidate *string     `json:"candidate"`
}

type pingJSON struct {
	Type  MessageType `json:"type"`
	Stats *bool       `json:"stats,omitempty"`
}

type pongJSON struct {
	Type  MessageType     `json:"type"`
	Stats json.RawMessage `json:"stats,omitempty"`
}

// MarshalMessage encodes msg in its wire form. Metadata and stats payloads
// are copied into the output byte for byte.
func MarshalMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case ConnectMessage:
		if !m.Role.Valid() {
			return nil, fmt.Errorf("connect: invalid role %q", m.Role)
		}
		if m.Metadata != nil && !json.Valid(m.Metadata) {
			return nil, errors.New("connect: metadata is not valid JSON")
		}
		return marshalConnect(m)
	case OfferMessage:
		servers := iceServersToJSON(m.ICEServers)
		return encodeJSON(offerJSON{
			Type:   MessageTypeOffer,
			SDP:    ptr(m.SDP),
			Config: &offerConfigJSON{ICEServers: &servers},
		})
	case AnswerMessage:
		return encodeJSON(sdpJSON{Type: MessageTypeAnswer, SDP: ptr(m.SDP)})
	case UpdateMessage:
		return encodeJSON(sdpJSON{Type: MessageTypeUpdate, SDP: ptr(m.SDP)})
	case CandidateMessage:
		return encodeJSON(candidateJSON{Type: MessageTypeCandidate, Candidate: ptr(m.Candidate)})
	case NotifyMessage:
		if !json.Valid(m.Raw) {
			return nil, errors.New("notify: raw payload is not valid JSON")
		}
		return append([]byte(nil), m.Raw...), nil
	case PingMessage:
		out := pingJSON{Type: MessageTypePing}
		if m.Stats {
			out.Stats = ptr(true)
		}
		return encodeJSON(out)
	case PongMessage:
		if m.Stats == nil {
			return encodeJSON(pongJSON{Type: MessageTypePong})
		}
		if !json.Valid(m.Stats) {
			return nil, errors.New("pong: stats report is not valid JSON")
		}
		// Concatenated by hand: the encoder would compact the report.
		out := make([]byte, 0, len(m.Stats)+32)
		out = append(out, `{"type":"pong","stats":`...)
		out = append(out, m.Stats...)
		out = append(out, '}')
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}
}

func marshalConnect(m ConnectMessage) ([]byte, error) {
	head, err := encodeJSON(connectHeadJSON{
		Type:        MessageTypeConnect,
		Role:        m.Role,
		Multistream: m.Multistream,
		ChannelID:   m.ChannelID,
		SoraClient:  m.SoraClient,
		LibWebRTC:   m.LibWebRTC,
		Environment: m.Environment,
	})
	if err != nil {
		return nil, err
	}
	media, err := encodeJSON(connectMediaJSON{
		Video: &mediaJSON{CodecType: m.Video.CodecType, BitRate: m.Video.BitRate},
		Audio: &mediaJSON{CodecType: m.Audio.CodecType, BitRate: m.Audio.BitRate},
	})
	if err != nil {
		return nil, err
	}

	// head ends with '}' and media starts with '{'.
	out := make([]byte, 0, len(head)+len(m.Metadata)+len(media)+16)
	out = append(out, head[:len(head)-1]...)
	if m.Metadata != nil {
		out = append(out, `,"metadata":`...)
		out = append(out, m.Metadata...)
	}
	out = append(out, ',')
	out = append(out, media[1:]...)
	return out, nil
}

// ParseMessage decodes one inbound wire message. Every failure wraps
// ErrUnparseable; unrecognized types also wrap ErrUnknownMessageType.
func ParseMessage(data []byte) (Message, error) {
	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if envelope.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrUnparseable)
	}

	msg, err := parseTyped(MessageType(*envelope.Type), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnparseable, *envelope.Type, err)
	}
	return msg, nil
}

func parseTyped(typ MessageType, data []byte) (Message, error) {
	switch typ {
	case MessageTypeConnect:
		var in connectJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		if !in.Role.Valid() {
			return nil, fmt.Errorf("invalid role %q", in.Role)
		}
		msg := ConnectMessage{
			Role:        in.Role,
			Multistream: in.Multistream,
			ChannelID:   in.ChannelID,
			SoraClient:  in.SoraClient,
			LibWebRTC:   in.LibWebRTC,
			Environment: in.Environment,
		}
		if len(in.Metadata) > 0 && !bytes.Equal(in.Metadata, []byte("null")) {
			msg.Metadata = in.Metadata
		}
		if in.Video != nil {
			msg.Video = MediaParams{CodecType: in.Video.CodecType, BitRate: in.Video.BitRate}
		}
		if in.Audio != nil {
			msg.Audio = MediaParams{CodecType: in.Audio.CodecType, BitRate: in.Audio.BitRate}
		}
		return msg, nil
	case MessageTypeOffer:
		var in offerJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		if in.SDP == nil || *in.SDP == "" {
			return nil, errors.New("missing sdp")
		}
		if in.Config == nil || in.Config.ICEServers == nil {
			return nil, errors.New("missing config.iceServers")
		}
		servers, err := parseICEServers(*in.Config.ICEServers)
		if err != nil {
			return nil, err
		}
		return OfferMessage{SDP: *in.SDP, ICEServers: servers}, nil
	case MessageTypeAnswer, MessageTypeUpdate:
		var in sdpJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		if in.SDP == nil || *in.SDP == "" {
			return nil, errors.New("missing sdp")
		}
		if typ == MessageTypeAnswer {
			return AnswerMessage{SDP: *in.SDP}, nil
		}
		return UpdateMessage{SDP: *in.SDP}, nil
	case MessageTypeCandidate:
		var in candidateJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		if in.Candidate == nil {
			return nil, errors.New("missing candidate")
		}
		return CandidateMessage{Candidate: *in.Candidate}, nil
	case MessageTypeNotify:
		return NotifyMessage{Raw: append(json.RawMessage(nil), data...)}, nil
	case MessageTypePing:
		var in pingJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		return PingMessage{Stats: in.Stats != nil && *in.Stats}, nil
	case MessageTypePong:
		var in pongJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		msg := PongMessage{}
		if len(in.Stats) > 0 && !bytes.Equal(in.Stats, []byte("null")) {
			msg.Stats = in.Stats
		}
		return msg, nil
	default:
		return nil, ErrUnknownMessageType
	}
}

// encodeJSON marshals v without HTML escaping so SDP and metadata strings
// keep their original characters.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
