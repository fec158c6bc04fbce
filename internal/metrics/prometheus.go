package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const prometheusMetricName = "aero_webrtc_signaling_client_events_total"

// components are the counter name prefixes split into a separate label.
var components = []string{"signaling", "webrtc", "client"}

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler serves the session counters in Prometheus' text format
// as one counter family labelled by component (signaling, webrtc, client)
// and event. Names outside those components are labelled "other".
func PrometheusHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintf(w, "# HELP %s Signaling session, media and host event counters.\n", prometheusMetricName)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", prometheusMetricName)
		for _, k := range keys {
			component, event := splitComponent(k)
			_, _ = fmt.Fprintf(w, "%s{component=\"%s\",event=\"%s\"} %d\n",
				prometheusMetricName, component, labelEscaper.Replace(event), snap[k])
		}
	})
}

func splitComponent(name string) (component, event string) {
	for _, c := range components {
		if rest, ok := strings.CutPrefix(name, c+"_"); ok && rest != "" {
			return c, rest
		}
	}
	return "other", name
}
