package metrics

import (
	"strings"
	"testing"

	"github.com/indigo-web/ember/http"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	require.Equal(t, 2.0, testutil.ToFloat64(m.connectionsOpened))
	require.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))

	m.Response(status.OK, 100)
	m.Response(status.NotFound, 20)
	m.Response(status.Silent, 0)
	require.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("2xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("4xx")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("unknown")))
	require.Equal(t, 120.0, testutil.ToFloat64(m.bytesWritten))

	m.FrameIn()
	m.FrameOut()
	m.FrameOut()
	require.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("out")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.Response(status.OK, 1)
		m.ParseError()
		m.FrameIn()
		m.FrameOut()
	})
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ParseError()

	request := http.NewRequest(kv.New(), http.NewResponse(), nil)
	fields := m.Handler()(request).Reveal()
	require.Equal(t, status.OK, fields.Code)
	require.True(t, strings.Contains(string(fields.Body), "ember_parse_errors_total 1"))
}
