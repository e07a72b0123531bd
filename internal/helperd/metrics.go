package helperd

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus instrumentation.
type Metrics struct {
	registry      *prometheus.Registry
	Requests      *prometheus.CounterVec
	EngineRunning prometheus.Gauge
	EngineCrashes prometheus.Counter
}

// NewMetrics builds and registers the daemon's collectors on a fresh
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nimbus_helperd_requests_total",
			Help: "IPC requests handled, by command and result code.",
		}, []string{"command", "code"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nimbus_helperd_engine_running",
			Help: "1 while an engine child process is running.",
		}),
		EngineCrashes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nimbus_helperd_engine_crashes_total",
			Help: "Unexpected engine exits detected by the supervisor.",
		}),
	}
	reg.MustRegister(m.Requests, m.EngineRunning, m.EngineCrashes)
	return m
}

// Serve exposes /metrics on addr, which must be loopback-only: the
// daemon never listens on a routable interface.
func (m *Metrics) Serve(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("metrics address %q: %w", addr, err)
	}
	if !strings.HasPrefix(host, "127.") && host != "localhost" && host != "::1" {
		return fmt.Errorf("metrics address %q is not loopback", addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %q: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	return nil
}
