package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Grounded on the teacher's adminMetrics pattern in metrics.go (counters
// registered via promauto against a prometheus.Registry), adapted to a
// custom prometheus.Collector since the values this exposes already live
// elsewhere (AppState's counters behind its RWMutex, spec §5; the relay's
// statistics in the relay's own atomic counters) — a Collector's on-demand
// Collect() reads those sources directly instead of keeping a second,
// independently-incremented counter set in sync with them.
const (
	metricsNamespace = "raiconnect"
	metricsSubsystem = "proxy"
)

var (
	requestsProxiedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "requests_proxied_total"),
		"Total HTTP(S) requests forwarded by the proxy.", nil, nil)
	beatmapsDownloadedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "beatmaps_downloaded_total"),
		"Total /d/ download requests served from the mirror.", nil, nil)
	relayConnectionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "relay_active_connections"),
		"Currently active Bancho TCP relay connections.", nil, nil)
	relayBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "relay_bytes_total"),
		"Total bytes relayed over the Bancho TCP tunnel.", []string{"direction"}, nil)
	relayOverflowsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "relay_buffer_overflows_total"),
		"Relay connections closed for exceeding the 1 MiB residual cap.", nil, nil)
	statusDesc = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "status"),
		"Current AppState status (0=Disconnected,1=Connecting,2=Connected,3=Error).", nil, nil)
)

// Collector adapts a Manager's AppState and relay statistics to
// Prometheus' pull model without introducing a second, independently
// maintained set of counters.
type Collector struct {
	m *Manager
}

// Collector returns a prometheus.Collector the shell (or the CLI's
// /metrics endpoint) can register, per SPEC_FULL.md's C7 note.
func (m *Manager) Collector() prometheus.Collector {
	return &Collector{m: m}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- requestsProxiedDesc
	ch <- beatmapsDownloadedDesc
	ch <- relayConnectionsDesc
	ch <- relayBytesDesc
	ch <- relayOverflowsDesc
	ch <- statusDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.m.state.Snapshot()
	relayStats := c.m.relay.Snapshot()

	ch <- prometheus.MustNewConstMetric(requestsProxiedDesc, prometheus.CounterValue, float64(snap.RequestsProxied))
	ch <- prometheus.MustNewConstMetric(beatmapsDownloadedDesc, prometheus.CounterValue, float64(snap.BeatmapsDownloaded))
	ch <- prometheus.MustNewConstMetric(relayConnectionsDesc, prometheus.GaugeValue, float64(relayStats.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(relayBytesDesc, prometheus.CounterValue, float64(relayStats.BytesClientToServer), "client_to_server")
	ch <- prometheus.MustNewConstMetric(relayBytesDesc, prometheus.CounterValue, float64(relayStats.BytesServerToClient), "server_to_client")
	ch <- prometheus.MustNewConstMetric(relayOverflowsDesc, prometheus.CounterValue, float64(relayStats.BufferOverflows))
	ch <- prometheus.MustNewConstMetric(statusDesc, prometheus.GaugeValue, float64(snap.Status))
}
