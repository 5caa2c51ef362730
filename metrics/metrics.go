// Package metrics exposes the engine's prometheus collectors. A nil *Metrics is valid and
// records nothing, so the engine doesn't have to check whether metrics are enabled.
package metrics

import (
	"bytes"

	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "ember"

type Metrics struct {
	connectionsOpened prometheus.Counter
	connectionsActive prometheus.Gauge
	responses         *prometheus.CounterVec
	bytesWritten      prometheus.Counter
	parseErrors       prometheus.Counter
	frames            *prometheus.CounterVec
	gatherer          prometheus.Gatherer
}

// New registers the collectors in the registry.
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		connectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of accepted connections",
		}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections being served",
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total number of written responses by status class",
		}, []string{"class"}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "written_bytes_total",
			Help:      "Total number of bytes written to clients",
		}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total number of requests rejected as malformed",
		}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "frames_total",
			Help:      "Total number of websocket frames by direction",
		}, []string{"direction"}),
		gatherer: registry,
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}

	m.connectionsOpened.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}

	m.connectionsActive.Dec()
}

var classes = [...]string{"unknown", "1xx", "2xx", "3xx", "4xx", "5xx"}

func (m *Metrics) Response(code status.Code, written int) {
	if m == nil {
		return
	}

	class := int(code) / 100
	if class < 1 || class >= len(classes) {
		class = 0
	}

	m.responses.WithLabelValues(classes[class]).Inc()
	m.bytesWritten.Add(float64(written))
}

func (m *Metrics) ParseError() {
	if m == nil {
		return
	}

	m.parseErrors.Inc()
}

func (m *Metrics) FrameIn() {
	if m == nil {
		return
	}

	m.frames.WithLabelValues("in").Inc()
}

func (m *Metrics) FrameOut() {
	if m == nil {
		return
	}

	m.frames.WithLabelValues("out").Inc()
}

// Handler serves the collected metrics in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return func(request *http.Request) *http.Response {
		families, err := m.gatherer.Gather()
		if err != nil {
			return http.Error(request, err)
		}

		var buff bytes.Buffer
		encoder := expfmt.NewEncoder(&buff, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, family := range families {
			if err = encoder.Encode(family); err != nil {
				return http.Error(request, err)
			}
		}

		return request.Respond().
			ContentType(mime.Plain).
			Bytes(buff.Bytes())
	}
}
