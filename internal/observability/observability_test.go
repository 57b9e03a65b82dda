package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, zerolog.WarnLevel, ParseLogLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLogLevel("verbose"))
}

func TestLogger_WritesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "core", zerolog.InfoLevel)
	log.Info().Uint64("price", 368).Msg("quoted")
	log.Debug().Msg("hidden")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "core", line["component"])
	assert.Equal(t, "quoted", line["message"])
	assert.EqualValues(t, 368, line["price"])
}

func TestReadiness(t *testing.T) {
	h := NewHealthChecker()

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	failing := errors.New("postgres down")
	var err error
	h.Register("postgres", func() error { return err })

	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	err = failing
	assert.False(t, h.IsReady())
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres down")
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthChecker().LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.CoreCommandsApplied.WithLabelValues("PlaceOrder").Inc()
	m.SetChannelMetrics("persist", 5, 10)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CoreCommandsApplied.WithLabelValues("PlaceOrder")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.ChannelUtilization.WithLabelValues("persist")))

	// A second set on a fresh registry must not collide.
	assert.NotPanics(t, func() { NewMetricsWith(prometheus.NewRegistry()) })
}
