package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

func newRunCommand(o *rootOptions) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load and initialize packages, then serve health and metrics until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := o.newHost(cmd)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := h.close(ctx); err != nil {
					o.log.Error(err, "shutdown")
				}
			}()
			return run(cmd, h, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "exit after initialization instead of serving")
	cmd.Flags().String("metrics-addr", "", "address for the prometheus endpoint, empty to disable")
	cmd.Flags().String("health-addr", "", "address for the grpc health service, empty to disable")
	_ = o.v.BindPFlag("metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	_ = o.v.BindPFlag("health_addr", cmd.Flags().Lookup("health-addr"))
	return cmd
}

func run(cmd *cobra.Command, h *host, once bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := h.load(ctx); err != nil && !isLoadError(err) {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	var stops []func()

	if addr := h.settings.MetricsAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen metrics %s: %w", addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		stops = append(stops, func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
		h.log.Info("serving metrics", "addr", lis.Addr().String())
	}

	if addr := h.settings.HealthAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			for _, stop := range stops {
				stop()
			}
			return fmt.Errorf("listen health %s: %w", addr, err)
		}
		gs := grpc.NewServer()
		h.health.Register(gs)
		g.Go(func() error {
			if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		stops = append(stops, func() {
			h.health.Shutdown()
			gs.GracefulStop()
		})
		h.log.Info("serving grpc health", "addr", lis.Addr().String())
	}

	g.Go(func() error {
		defer func() {
			for i := len(stops) - 1; i >= 0; i-- {
				stops[i]()
			}
		}()

		err := h.injector.Initialize(gctx)
		h.health.SetReady(err == nil)
		printPackages(cmd.OutOrStdout(), h.injector.Packages(), nil)
		if err != nil {
			return err
		}
		h.log.Info("all packages ready")
		if once {
			return nil
		}
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}
