package purifier

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/core"
	"github.com/joshp123/gohome-purifier/internal/rate"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

// Plugin implements the GoHome plugin contract.
type Plugin struct {
	client        *Client
	bridge        *Bridge
	rateLimits    rate.Declaration
	logger        *zap.Logger
	health        core.HealthStatus
	healthMessage string
}

var (
	_ rate.RateLimited    = (*Plugin)(nil)
	_ core.HTTPRegistrant = (*Plugin)(nil)
	_ core.Runner         = (*Plugin)(nil)
)

// NewPlugin constructs the purifier plugin from the daemon config. A plugin
// that failed to configure is still returned so it reports its error health.
func NewPlugin(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Plugin, bool) {
	if cfg == nil {
		return Plugin{}, false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("purifier")

	runtimeCfg, err := ConfigFromFile(ctx, cfg)
	if err != nil {
		logger.Error("purifier config", zap.Error(err))
		return Plugin{logger: logger, health: core.HealthError, healthMessage: err.Error()}, true
	}

	transport, err := NewHTTPTransport(runtimeCfg.Credentials, runtimeCfg.BaseURL, runtimeCfg.Timeout,
		WithLogger(logger),
		WithRateLimits(runtimeCfg.Rate),
	)
	if err != nil {
		return Plugin{logger: logger, health: core.HealthError, healthMessage: err.Error()}, true
	}

	return newPlugin(NewClient(transport, logger), runtimeCfg, logger), true
}

func newPlugin(client *Client, cfg Config, logger *zap.Logger) Plugin {
	p := Plugin{
		client:     client,
		rateLimits: cfg.Rate,
		logger:     logger,
		health:     core.HealthHealthy,
	}
	if cfg.MQTT.Enabled() {
		p.bridge = NewBridge(client, cfg.MQTT, logger)
	}
	return p
}

// Client returns the configured client, or nil when configuration failed.
func (p Plugin) Client() *Client {
	return p.client
}

func (p Plugin) ID() string {
	return "purifier"
}

func (p Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    "purifier",
		DisplayName: "Daikin Air Purifier",
		Version:     "0.1.0",
		Endpoints: []string{
			unitEndpoint,
			controlEndpoint,
			presetsEndpoint,
			setFieldEndpoint,
		},
	}
}

func (p Plugin) AgentsMD() string {
	return agentsMD
}

func (p Plugin) RateLimits() rate.Declaration {
	return p.rateLimits
}

func (p Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "purifier-overview", JSON: dashboardJSON}}
}

func (p Plugin) RegisterHTTP(mux *http.ServeMux) {
	newService(p.client, p.logger).register(mux)
}

// Run drives the MQTT bridge when one is configured.
func (p Plugin) Run(ctx context.Context) error {
	if p.bridge == nil {
		<-ctx.Done()
		return nil
	}
	return p.bridge.Run(ctx)
}

func (p Plugin) Collectors() []prometheus.Collector {
	if p.client == nil {
		return nil
	}
	return append([]prometheus.Collector{NewMetricsCollector(p.client)}, rate.MetricsCollectors()...)
}

func (p Plugin) Health() core.HealthStatus {
	return p.health
}

func (p Plugin) HealthMessage() string {
	return p.healthMessage
}
