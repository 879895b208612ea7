// Package probe serves the standard grpc.health.v1 service so orchestrators
// can tell whether the evaluation loop is healthy.
package probe

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/obsidianstack/licensewatch/server/internal/alerts"
)

// Service is the health service name reporting the evaluation loop.
const Service = "licensewatch.alerts"

// Probe tracks serving status from evaluation cycle outcomes.
type Probe struct {
	srv *health.Server
}

// New creates a Probe. The process reports SERVING; Service stays
// NOT_SERVING until the first successful cycle.
func New() *Probe {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Probe{srv: srv}
}

// Register adds the health service to s.
func (p *Probe) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, p.srv)
}

// ObserveCycle flips Service to SERVING after a successful or skipped cycle
// and to NOT_SERVING after a failed one.
func (p *Probe) ObserveCycle(rep alerts.CycleReport) {
	status := healthpb.HealthCheckResponse_SERVING
	if rep.Err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		slog.Debug("probe: marking not serving", "err", rep.Err)
	}
	p.srv.SetServingStatus(Service, status)
}

// Shutdown marks every service NOT_SERVING; later updates are ignored.
func (p *Probe) Shutdown() {
	p.srv.Shutdown()
}
