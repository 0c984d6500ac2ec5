package router

import (
	"net/http"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joshp123/gohome-purifier/internal/core"
)

// RegisterPlugins mounts the registry and plugin HTTP handlers on mux and
// publishes each plugin's health on the gRPC health service. A nil hs skips
// health publishing.
func RegisterPlugins(mux *http.ServeMux, hs *health.Server, plugins []core.Plugin) {
	registry := core.NewRegistryService(plugins)
	mux.Handle("/plugins", registry)
	mux.Handle("/plugins/", registry)

	for _, p := range plugins {
		if registrant, ok := p.(core.HTTPRegistrant); ok {
			registrant.RegisterHTTP(mux)
		}
	}

	UpdateHealth(hs, plugins)
}

// UpdateHealth maps plugin health onto gRPC serving status keyed by plugin id.
// The overall status ("") is SERVING unless a plugin reports an error.
func UpdateHealth(hs *health.Server, plugins []core.Plugin) {
	if hs == nil {
		return
	}
	overall := healthpb.HealthCheckResponse_SERVING
	for _, p := range plugins {
		status := servingStatus(p.Health())
		if status != healthpb.HealthCheckResponse_SERVING {
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(p.ID(), status)
	}
	hs.SetServingStatus("", overall)
}

func servingStatus(status core.HealthStatus) healthpb.HealthCheckResponse_ServingStatus {
	switch status {
	case core.HealthHealthy, core.HealthDegraded:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}
