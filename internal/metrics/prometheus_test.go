package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler_ExposesSnapshot(t *testing.T) {
	m := New()
	m.Inc(SignalingConnects)
	m.Add(MessageReceived("offer"), 2)
	m.Add(RTPPacketsReceived, 7)
	m.Inc(HostEventsQueued)
	m.Inc(`quote"back\slash`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	PrometheusHandler(m).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "# TYPE aero_webrtc_signaling_client_events_total counter") {
		t.Fatalf("missing TYPE header: %s", body)
	}
	for _, want := range []string{
		`aero_webrtc_signaling_client_events_total{component="signaling",event="connects"} 1`,
		`aero_webrtc_signaling_client_events_total{component="signaling",event="received_offer"} 2`,
		`aero_webrtc_signaling_client_events_total{component="webrtc",event="rtp_packets_received"} 7`,
		`aero_webrtc_signaling_client_events_total{component="client",event="host_events_queued"} 1`,
		// Label escaping follows the Prometheus text format rules.
		`aero_webrtc_signaling_client_events_total{component="other",event="quote\"back\\slash"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()

	PrometheusHandler(nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusInternalServerError)
	}
}
