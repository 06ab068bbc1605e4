package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/mcp-scooter/toolbridge/internal/apperr"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDetection("ollama", "installed")
		m.ObserveCache("ollama", true)
		m.ObserveRequest("echo_srv", "tools/list", nil, time.Second)
		m.SessionStarted()
		m.SessionEnded()
	})
}

func TestMetrics_Counts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCache("gemini", false)
	m.ObserveCache("gemini", true)
	m.ObserveCache("gemini", true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("gemini", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("gemini", "miss")))

	m.ObserveRequest("echo_srv", "tools/call", apperr.New(apperr.KindTimeout, "slow"), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("echo_srv", "tools/call", "timeout")))

	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "rpc", Status(apperr.New(apperr.KindRPC, "x")))
	assert.Equal(t, "error", Status(errors.New("plain")))
}
