// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing for
// backend calls, uploads and admin sessions.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mlf"

var (
	remoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_calls_total",
		Help:      "Backend calls by driver, operation and outcome.",
	}, []string{"driver", "op", "outcome"})
	remoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_call_duration_seconds",
		Help:      "Backend call latency by driver and operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"driver", "op"})
	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "image_uploads_total",
		Help:      "Image attachments by source and outcome.",
	}, []string{"source", "outcome"})
	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_logins_total",
		Help:      "Admin sign-in attempts by outcome.",
	}, []string{"outcome"})
	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Backend access token refreshes by outcome.",
	}, []string{"outcome"})
	webSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "web_sessions_active",
		Help:      "Number of unexpired admin web sessions.",
	})
	liveSearchSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_search_sockets",
		Help:      "Open live-search websocket connections.",
	})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRemoteCall records one backend call.
func ObserveRemoteCall(driver, op string, started time.Time, err error) {
	remoteCalls.WithLabelValues(driver, op, outcome(err)).Inc()
	remoteLatency.WithLabelValues(driver, op).Observe(time.Since(started).Seconds())
}

// ObserveUpload records an image attachment attempt; source is "file" or "url".
func ObserveUpload(source string, err error) {
	uploads.WithLabelValues(source, outcome(err)).Inc()
}

// ObserveLogin records an admin sign-in attempt.
func ObserveLogin(err error) {
	logins.WithLabelValues(outcome(err)).Inc()
}

// ObserveTokenRefresh records a backend token refresh attempt.
func ObserveTokenRefresh(err error) {
	tokenRefreshes.WithLabelValues(outcome(err)).Inc()
}

// SetWebSessions sets the active web session gauge.
func SetWebSessions(n int) {
	webSessions.Set(float64(n))
}

// LiveSearchOpened and LiveSearchClosed track open search sockets.
func LiveSearchOpened() { liveSearchSockets.Inc() }

func LiveSearchClosed() { liveSearchSockets.Dec() }

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
