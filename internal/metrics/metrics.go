// Package metrics exports package lifecycle metrics to Prometheus.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bayleafwalker/packhost/injector"
)

// Recorder is an injector.Observer that keeps lifecycle metrics.
type Recorder struct {
	transitionsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	packageReady     *prometheus.GaugeVec
	initDuration     *prometheus.HistogramVec
	packagesLoaded   prometheus.Gauge
	loadErrorsTotal  prometheus.Counter

	mu      sync.Mutex
	started map[string]time.Time
	now     func() time.Time
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packhost_package_transitions_total",
				Help: "Number of package state transitions by target state.",
			},
			[]string{"state"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "packhost_package_failures_total",
				Help: "Number of packages that failed, by package and stage (validation or init).",
			},
			[]string{"package", "stage"},
		),
		packageReady: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "packhost_package_ready",
				Help: "1 when the package finished initializing, 0 otherwise.",
			},
			[]string{"package"},
		),
		initDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "packhost_package_init_duration_seconds",
				Help:    "Time from a package entering Initializing to Ready or Failed.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		packagesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "packhost_packages_loaded",
				Help: "Number of packages accepted by the loader.",
			},
		),
		loadErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "packhost_load_errors_total",
				Help: "Number of candidates the loader could not load.",
			},
		),
		started: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, c := range []prometheus.Collector{
		r.transitionsTotal,
		r.failuresTotal,
		r.packageReady,
		r.initDuration,
		r.packagesLoaded,
		r.loadErrorsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveLoad records the outcome of one LoadPackages call.
func (r *Recorder) ObserveLoad(accepted, failed int) {
	r.packagesLoaded.Add(float64(accepted))
	r.loadErrorsTotal.Add(float64(failed))
}

func (r *Recorder) OnStateChange(_ context.Context, pkg *injector.Package, from, to injector.State, _ error) {
	name := pkg.Name()
	r.transitionsTotal.WithLabelValues(to.String()).Inc()

	switch to {
	case injector.StateOrdered:
		r.packageReady.WithLabelValues(name).Set(0)
	case injector.StateInitializing:
		r.mu.Lock()
		r.started[name] = r.now()
		r.mu.Unlock()
	case injector.StateReady:
		r.packageReady.WithLabelValues(name).Set(1)
		r.observeInit(name, "ready")
	case injector.StateFailed:
		r.packageReady.WithLabelValues(name).Set(0)
		stage := "init"
		if from < injector.StateOrdered {
			stage = "validation"
		}
		r.failuresTotal.WithLabelValues(name, stage).Inc()
		r.observeInit(name, "failed")
	}
}

func (r *Recorder) observeInit(name, outcome string) {
	r.mu.Lock()
	began, ok := r.started[name]
	delete(r.started, name)
	r.mu.Unlock()
	if ok {
		r.initDuration.WithLabelValues(outcome).Observe(r.now().Sub(began).Seconds())
	}
}
