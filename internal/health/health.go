// Package health exposes package readiness over the standard gRPC health
// checking protocol.
//
// The overall service ("") turns SERVING once every loaded package is ready.
// Each package is also reported under ServiceName(pkg).
package health

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bayleafwalker/packhost/injector"
)

const servicePrefix = "packhost.package."

// ServiceName is the health service name reported for a package.
func ServiceName(pkg string) string { return servicePrefix + pkg }

// Reporter is an injector.Observer backed by a grpc health server.
type Reporter struct {
	srv *health.Server
}

func NewReporter() *Reporter {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Reporter{srv: srv}
}

// Register adds the health service to s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

func (r *Reporter) OnStateChange(_ context.Context, pkg *injector.Package, _, to injector.State, _ error) {
	service := ServiceName(pkg.Name())
	switch to {
	case injector.StateReady:
		r.srv.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	default:
		r.srv.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}

// SetReady sets the overall status once Initialize has returned.
func (r *Reporter) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.srv.SetServingStatus("", status)
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (r *Reporter) Shutdown() {
	r.srv.Shutdown()
}
