package config

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	clientName     = "aero-webrtc-signaling-client"
	webrtcModule   = "github.com/pion/webrtc/v4"
	defaultVersion = "dev"
)

// DefaultSoraClient returns the client identity sent as sora_client.
// version and commit usually come from -ldflags; either may be empty.
func DefaultSoraClient(version, commit string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		version = defaultVersion
	}
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return fmt.Sprintf("%s %s", clientName, version)
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s %s (%s)", clientName, version, commit)
}

// DefaultLibWebRTC returns the library identity sent as libwebrtc, using the
// pion/webrtc module version linked into the binary when build info is
// available.
func DefaultLibWebRTC() string {
	return "pion/webrtc " + moduleVersion(webrtcModule)
}

// DefaultEnvironment describes the runtime, e.g. "Go go1.22.3 for linux/amd64".
func DefaultEnvironment() string {
	return fmt.Sprintf("Go %s for %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func moduleVersion(path string) string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range bi.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil && dep.Replace.Version != "" {
			return dep.Replace.Version
		}
		if dep.Version != "" {
			return dep.Version
		}
	}
	return "unknown"
}
