package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// MetricsCollector serves the metrics registered on it.
type MetricsCollector interface {
	Handler() http.Handler
}

// CollectorConfig names the exported metrics and selects the runtime
// collectors registered next to them.
type CollectorConfig struct {
	Namespace            string            `mapstructure:"namespace"`
	Subsystem            string            `mapstructure:"subsystem"`
	EnableProcessMetrics bool              `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool              `mapstructure:"enable_go_metrics"`
	ConstLabels          map[string]string `mapstructure:"const_labels"`
}

// Collector owns the registry exposed on the worker's metrics endpoint.
type Collector struct {
	cfg      CollectorConfig
	registry *prometheus.Registry
	logger   logging.Logger
}

func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (*Collector, error) {
	if cfg.Namespace == "" {
		return nil, errors.InvalidParam("metrics namespace is required")
	}
	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}
	return &Collector{cfg: cfg, registry: reg, logger: logger}, nil
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *Collector) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   c.cfg.Namespace,
		Subsystem:   c.cfg.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: c.cfg.ConstLabels,
	}
}

func (c *Collector) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return register(c, prometheus.NewCounterVec(prometheus.CounterOpts(c.opts(name, help)), labels))
}

func (c *Collector) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return register(c, prometheus.NewGaugeVec(prometheus.GaugeOpts(c.opts(name, help)), labels))
}

func (c *Collector) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	o := c.opts(name, help)
	return register(c, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   o.Namespace,
		Subsystem:   o.Subsystem,
		Name:        o.Name,
		Help:        o.Help,
		ConstLabels: o.ConstLabels,
		Buckets:     buckets,
	}, labels))
}

// register adds vec to the registry. A metric registered earlier under the
// same name is returned instead; any other failure leaves vec working but
// unexported.
func register[T prometheus.Collector](c *Collector, vec T) T {
	err := c.registry.Register(vec)
	if err == nil {
		return vec
	}
	var dup prometheus.AlreadyRegisteredError
	if errors.As(err, &dup) {
		if existing, ok := dup.ExistingCollector.(T); ok {
			return existing
		}
	}
	c.logger.Error("cannot register metric", logging.Err(err))
	return vec
}

//Personal.AI order the ending
