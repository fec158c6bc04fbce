package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

// iceServerJSON is one entry of offer.config.iceServers.
type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   *string             `json:"username,omitempty"`
	Credential *string             `json:"credential,omitempty"`
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return errors.New("urls must be a string or an array of strings")
	}
	*s = many
	return nil
}

func parseICEServers(servers []iceServerJSON) ([]webrtc.ICEServer, error) {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, server := range servers {
		urls := make([]string, 0, len(server.URLs))
		for _, url := range server.URLs {
			urls = append(urls, strings.TrimSpace(url))
		}

		pcServer := webrtc.ICEServer{URLs: urls}
		if server.Username != nil {
			pcServer.Username = *server.Username
		}
		if server.Credential != nil {
			pcServer.Credential = *server.Credential
		}

		if err := validateICEServer(pcServer); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, pcServer)
	}
	return out, nil
}

func iceServersToJSON(servers []webrtc.ICEServer) []iceServerJSON {
	out := make([]iceServerJSON, 0, len(servers))
	for _, server := range servers {
		entry := iceServerJSON{URLs: append(stringOrStringSlice(nil), server.URLs...)}
		if server.Username != "" {
			entry.Username = ptr(server.Username)
		}
		if cred, ok := server.Credential.(string); ok && cred != "" {
			entry.Credential = ptr(cred)
		}
		out = append(out, entry)
	}
	return out
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	requiresTurnCreds := false
	for _, raw := range server.URLs {
		url := strings.TrimSpace(raw)
		if url == "" {
			return errors.New("urls must not contain empty entries")
		}
		if !isAllowedICEScheme(url) {
			return fmt.Errorf("unsupported url scheme: %q", url)
		}
		if strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:") {
			requiresTurnCreds = true
		}
	}

	if requiresTurnCreds {
		if strings.TrimSpace(server.Username) == "" {
			return errors.New("turn urls require username")
		}
		cred, ok := server.Credential.(string)
		if !ok || strings.TrimSpace(cred) == "" {
			return errors.New("turn urls require credential")
		}
	}

	return nil
}

func isAllowedICEScheme(url string) bool {
	switch {
	case strings.HasPrefix(url, "stun:"),
		strings.HasPrefix(url, "stuns:"),
		strings.HasPrefix(url, "turn:"),
		strings.HasPrefix(url, "turns:"):
		return true
	default:
		return false
	}
}

func ptr[T any](v T) *T { return &v }
