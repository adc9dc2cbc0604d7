// Command packhost-probe checks a running packhost over the grpc health
// protocol. It exits 0 when the service is SERVING.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bayleafwalker/packhost/internal/health"
)

func main() {
	var target, pkg string
	var timeout time.Duration
	flag.StringVar(&target, "target", "127.0.0.1:50051", "gRPC health address")
	flag.StringVar(&pkg, "package", "", "package to check, empty for the whole host")
	flag.DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	status, err := probe(ctx, target, pkg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe %s: %v\n", target, err)
		os.Exit(2)
	}
	fmt.Println(status)
	if status != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}

func probe(ctx context.Context, target, pkg string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	service := ""
	if pkg != "" {
		service = health.ServiceName(pkg)
	}
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
