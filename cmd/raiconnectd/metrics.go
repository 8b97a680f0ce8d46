package main

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rai-osu/connect/internal/api"
)

// serveMetrics exposes app's running manager as a Prometheus scrape
// endpoint at addr, grounded on mercator-hq-jupiter's
// pkg/telemetry/metrics.Collector.Handler (promhttp.HandlerFor against a
// dedicated registry rather than the global one, since app.Manager() can
// be replaced across a Connect/Disconnect cycle). It exits once ctx is
// done or the listener fails.
func serveMetrics(ctx context.Context, addr string, app *api.API) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewBuildInfoCollector())
	reg.MustRegister(&appCollector{app: app})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}))

	srv := &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

// appCollector forwards Describe/Collect to whichever manager.Collector
// app currently exposes, since the manager instance is replaced on every
// Connect/Disconnect cycle; it reports nothing while disconnected.
type appCollector struct {
	app *api.API
}

func (c *appCollector) Describe(ch chan<- *prometheus.Desc) {
	if mgr := c.app.Manager(); mgr != nil {
		mgr.Collector().Describe(ch)
	}
}

func (c *appCollector) Collect(ch chan<- prometheus.Metric) {
	if mgr := c.app.Manager(); mgr != nil {
		mgr.Collector().Collect(ch)
	}
}
