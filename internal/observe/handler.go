package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves the Prometheus scrape endpoint. The exporter
// installed by [InitProvider] registers with the default Prometheus
// registry, so this handler exposes every skillprobe.* instrument.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
