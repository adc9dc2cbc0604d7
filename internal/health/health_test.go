package health

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bayleafwalker/packhost/config"
	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/manifest"
)

func dial(t *testing.T, r *Reporter) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	r.Register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestReporter_TracksPackages(t *testing.T) {
	r := NewReporter()
	client := dial(t, r)

	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected overall NOT_SERVING before init, got %v", got)
	}

	cat := injector.NewCatalog()
	cat.Register("db", injector.FactoryOf(func(*injector.Package, injector.Args) (any, error) { return nil, nil }))
	cat.Register("api", injector.FactoryOf(func(pkg *injector.Package, _ injector.Args) (any, error) {
		pkg.OnInit(func(context.Context, *config.Scope) error { return errors.New("no route") })
		return nil, nil
	}))
	in := injector.New(injector.WithCatalog(cat), injector.WithObserver(r))
	_, err := in.LoadPackages(context.Background(), discovery.Static(
		discovery.Candidate{Origin: "t/db", Manifest: &manifest.Manifest{Name: "db", Version: "1.0.0", Keywords: []string{manifest.MarkerKeyword}}},
		discovery.Candidate{Origin: "t/api", Manifest: &manifest.Manifest{Name: "api", Version: "1.0.0", Keywords: []string{manifest.MarkerKeyword}, Dependencies: map[string]string{"db": "*"}}},
	))
	if err != nil {
		t.Fatalf("LoadPackages: %v", err)
	}
	r.SetReady(in.Initialize(context.Background()) == nil)

	if got := check(t, client, ServiceName("db")); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected db SERVING, got %v", got)
	}
	if got := check(t, client, ServiceName("api")); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected api NOT_SERVING, got %v", got)
	}
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected overall NOT_SERVING after failure, got %v", got)
	}

	_, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName("unknown")})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for unknown package, got %v", err)
	}
}

func TestReporter_OverallReadyAndShutdown(t *testing.T) {
	r := NewReporter()
	client := dial(t, r)

	r.SetReady(true)
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}

	r.Shutdown()
	r.SetReady(true)
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after shutdown, got %v", got)
	}
}
