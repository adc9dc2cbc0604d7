package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	packhostv1alpha1 "github.com/bayleafwalker/packhost/api/v1alpha1"
	"github.com/bayleafwalker/packhost/injector"
	"github.com/bayleafwalker/packhost/internal/discovery"
	"github.com/bayleafwalker/packhost/internal/health"
	"github.com/bayleafwalker/packhost/internal/kube"
	"github.com/bayleafwalker/packhost/internal/metrics"
	"github.com/bayleafwalker/packhost/internal/tracing"
	"github.com/bayleafwalker/packhost/modules"
)

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(packhostv1alpha1.AddToScheme(scheme))
}

// host wires an Injector to its package sources and observers.
type host struct {
	settings Settings
	log      logr.Logger

	injector *injector.Injector
	source   discovery.Source
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	health   *health.Reporter
	tracing  *tracing.Provider

	// closers run in reverse order on close.
	closers []func(context.Context) error
}

type hostOptions struct {
	catalog    *injector.Catalog
	kubeClient client.Client
	recorder   record.EventRecorder
	traceOut   io.Writer
	overrides  map[string]any
}

func newHost(s Settings, log logr.Logger, o hostOptions) (*host, error) {
	h := &host{settings: s, log: log}

	tp, err := tracing.NewProvider(s.Tracing, o.traceOut)
	if err != nil {
		return nil, err
	}
	h.tracing = tp
	h.closers = append(h.closers, tp.Shutdown)

	h.registry = prometheus.NewRegistry()
	h.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if h.metrics, err = metrics.NewRecorder(h.registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	h.health = health.NewReporter()

	catalog := o.catalog
	if catalog == nil {
		catalog = modules.Catalog()
	}
	observers := []injector.Observer{h.metrics, h.health}

	var sources []discovery.Source
	if s.PackagesDir != "" {
		sources = append(sources, discovery.NewFS(os.DirFS(s.PackagesDir),
			discovery.WithRoot(s.PackagesDir),
			discovery.WithConcurrency(s.ScanConcurrency),
			discovery.WithLogger(log.WithName("discovery")),
		))
	}
	if s.Kube.Enabled {
		src, reporter, err := h.kube(o)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
		if reporter != nil {
			observers = append(observers, reporter)
		}
	}
	h.source = discovery.Multi(sources...)

	h.injector = injector.New(
		injector.WithLogger(log.WithName("injector")),
		injector.WithCatalog(catalog),
		injector.WithMarker(s.Marker),
		injector.WithInitTimeout(s.InitTimeout),
		injector.WithTracerProvider(tp.TracerProvider()),
		injector.WithObserver(observers...),
	)
	if err := h.injector.InitConfig(s.Config); err != nil {
		return nil, fmt.Errorf("package config: %w", err)
	}
	if err := h.injector.InitConfig(o.overrides); err != nil {
		return nil, fmt.Errorf("package config: %w", err)
	}
	return h, nil
}

func (h *host) kube(o hostOptions) (*kube.Source, *kube.StatusReporter, error) {
	selector := labels.Everything()
	if h.settings.Kube.Selector != "" {
		var err error
		if selector, err = labels.Parse(h.settings.Kube.Selector); err != nil {
			return nil, nil, fmt.Errorf("kube selector: %w", err)
		}
	}

	c, recorder := o.kubeClient, o.recorder
	if c == nil {
		cfg, err := ctrl.GetConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("kube config: %w", err)
		}
		if c, err = client.New(cfg, client.Options{Scheme: scheme}); err != nil {
			return nil, nil, fmt.Errorf("kube client: %w", err)
		}
		if recorder == nil && h.settings.Kube.ReportStatus {
			cs, err := kubernetes.NewForConfig(cfg)
			if err != nil {
				return nil, nil, fmt.Errorf("kube clientset: %w", err)
			}
			broadcaster := record.NewBroadcaster()
			broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: cs.CoreV1().Events("")})
			h.closers = append(h.closers, func(context.Context) error {
				broadcaster.Shutdown()
				return nil
			})
			recorder = broadcaster.NewRecorder(scheme, corev1.EventSource{Component: "packhost"})
		}
	}

	src := &kube.Source{Client: c, Namespace: h.settings.Kube.Namespace, Selector: selector}
	if !h.settings.Kube.ReportStatus {
		return src, nil, nil
	}
	host := h.settings.Kube.Host
	if host == "" {
		host, _ = os.Hostname()
	}
	return src, &kube.StatusReporter{
		Client:   c,
		Recorder: recorder,
		Host:     host,
		Log:      h.log.WithName("kube-status"),
	}, nil
}

// load discovers and loads packages. Rejected candidates are logged and
// counted; the returned error is the loader's aggregate.
func (h *host) load(ctx context.Context) ([]*injector.Package, error) {
	pkgs, err := h.injector.LoadPackages(ctx, h.source)
	failed := 0
	var loadErr *injector.LoadError
	if errors.As(err, &loadErr) {
		failed = len(loadErr.Errs)
		for _, e := range loadErr.Errs {
			h.log.Error(e, "package rejected")
		}
	} else if err != nil {
		return nil, err
	}
	h.metrics.ObserveLoad(len(pkgs), failed)
	h.log.Info("packages loaded", "accepted", len(pkgs), "rejected", failed, "source", fmt.Sprint(h.source))
	return pkgs, err
}

func (h *host) close(ctx context.Context) error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i](ctx))
	}
	return errors.Join(errs...)
}
