package purifier

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/core"
)

func TestPluginContract(t *testing.T) {
	p := newPlugin(newTestClient(&fakeTransport{unit: unitBody}), Config{}, zaptest.NewLogger(t))

	require.NoError(t, core.ValidatePlugins([]core.Plugin{p}))
	assert.Equal(t, core.HealthHealthy, p.Health())
	assert.Contains(t, p.AgentsMD(), "/purifier/unit")
	assert.Nil(t, p.bridge)

	dashboards := p.Dashboards()
	require.Len(t, dashboards, 1)
	assert.True(t, json.Valid(dashboards[0].JSON))

	mux := http.NewServeMux()
	p.RegisterHTTP(mux)
	_, pattern := mux.Handler(mustRequest(t, http.MethodGet, unitEndpoint))
	assert.NotEmpty(t, pattern)
}

func TestPluginWithMQTT(t *testing.T) {
	cfg := Config{MQTT: config.MQTTConfig{Broker: "tcp://127.0.0.1:1", TopicPrefix: "x"}}
	p := newPlugin(newTestClient(&fakeTransport{}), cfg, zaptest.NewLogger(t))

	require.NotNil(t, p.bridge)
	assert.Equal(t, "x/state", p.bridge.topic("state"))
}

func TestPluginRunWithoutBridge(t *testing.T) {
	p := newPlugin(newTestClient(&fakeTransport{}), Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Run(ctx))
}

func TestNewPluginReportsConfigError(t *testing.T) {
	p, ok := NewPlugin(context.Background(), &config.Config{}, zaptest.NewLogger(t))

	require.True(t, ok)
	assert.Equal(t, core.HealthError, p.Health())
	assert.NotEmpty(t, p.HealthMessage())
	assert.Nil(t, p.Collectors())

	_, ok = NewPlugin(context.Background(), nil, nil)
	assert.False(t, ok)
}

func TestMetricsCollector(t *testing.T) {
	collector := NewMetricsCollector(newTestClient(&fakeTransport{unit: unitBody}))
	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(collector))

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			values[family.GetName()] += metric.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["gohome_purifier_scrape_success"])
	assert.Equal(t, 1.0, values["gohome_purifier_power_on"])
	assert.Equal(t, 21.5, values["gohome_purifier_temperature_celsius"])
	assert.NotContains(t, values, "gohome_purifier_dust_level")
}

func TestMetricsCollectorFailure(t *testing.T) {
	collector := NewMetricsCollector(newTestClient(&fakeTransport{err: &TransportError{StatusCode: 500}}))

	assert.Equal(t, 1, testutil.CollectAndCount(collector))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.success))
}

func mustRequest(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	return req
}
