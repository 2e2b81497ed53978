package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for Metrics.
const (
	opLoad = "load"
	opSave = "save"

	sourceRemote = "remote"
	sourceLocal  = "local"

	reasonUnreachable   = "unreachable"
	reasonUnconfigured  = "unconfigured"
	reasonEmpty         = "empty"
	reasonRemoteFailure = "remote_failure"
)

// Metrics counts where images were loaded from and saved to.
type Metrics struct {
	Operations     *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec
	RemoteFailures *prometheus.CounterVec
	ShadowedLocal  prometheus.Counter
	ImageBytes     prometheus.Gauge
}

// NewMetrics registers the selector metrics with reg. A nil reg creates
// unregistered collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclelog_backend_operations_total",
				Help: "Image loads and saves by the backend that served them",
			},
			[]string{"op", "source"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclelog_backend_fallbacks_total",
				Help: "Operations that used the local fallback, by reason",
			},
			[]string{"op", "reason"},
		),
		RemoteFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclelog_backend_remote_failures_total",
				Help: "Remote calls that failed after the remote was found reachable",
			},
			[]string{"op"},
		),
		ShadowedLocal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cyclelog_backend_shadowed_local_total",
				Help: "Remote loads that won over a newer local fallback blob",
			},
		),
		ImageBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cyclelog_backend_image_bytes",
				Help: "Size of the most recently loaded or saved image",
			},
		),
	}
}
