// Package metrics exposes the status of a service manager as Prometheus
// metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"go.tickamp.dev/servicegraph"
)

var statuses = []servicegraph.Status{
	servicegraph.Unknown,
	servicegraph.WaitingToStart,
	servicegraph.Starting,
	servicegraph.Started,
	servicegraph.WaitingToStop,
	servicegraph.Stopping,
	servicegraph.Stopped,
}

// Collector is a status listener maintaining Prometheus metrics.
type Collector struct {
	Transitions *prometheus.CounterVec // Status changes per service and status
	Services    *prometheus.GaugeVec   // Services currently in each status

	mu   sync.Mutex
	last map[string]servicegraph.Status
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "servicegraph_transitions_total",
		Help: "Total number of status changes per service",
	}, []string{"service", "status"})

	services := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "servicegraph_services",
		Help: "Current number of services in each status",
	}, []string{"status"})
	for _, s := range statuses {
		services.WithLabelValues(s.String())
	}

	reg.MustRegister(transitions)
	reg.MustRegister(services)

	return &Collector{
		Transitions: transitions,
		Services:    services,
		last:        make(map[string]servicegraph.Status),
	}
}

// Observe is a servicegraph.StatusListener. The first record received for a
// service sets its baseline; later records count as a transition when the
// status differs from the last one seen, so full publications are harmless.
func (c *Collector) Observe(records []servicegraph.StatusRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		prev, seen := c.last[r.ServiceID]
		if seen && prev == r.Status {
			continue
		}
		c.last[r.ServiceID] = r.Status
		c.Services.WithLabelValues(r.Status.String()).Inc()
		if !seen {
			continue
		}
		c.Services.WithLabelValues(prev.String()).Dec()
		c.Transitions.WithLabelValues(r.ServiceID, r.Status.String()).Inc()
	}
	return nil
}
