package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zsiec/pictype/internal/ingest"
)

const ingestSubsystem = "ingest"

var (
	ingestStreamsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, ingestSubsystem, "streams"),
		"The number of connected ingest streams",
		nil, nil,
	)

	ingestBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, ingestSubsystem, "received_bytes_total"),
		"total number of bytes received from the sender",
		[]string{"stream", "remote"}, nil,
	)

	ingestReadsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, ingestSubsystem, "reads_total"),
		"total number of socket reads",
		[]string{"stream", "remote"}, nil,
	)

	ingestUptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(Namespace, ingestSubsystem, "uptime_seconds"),
		"time since the sender connected",
		[]string{"stream", "remote"}, nil,
	)
)

// SnapshotSource lists the state of connected streams.
type SnapshotSource interface {
	Snapshots() []ingest.Snapshot
}

// IngestCollector exports connection statistics of ingest streams. It
// implements prometheus.Collector.
type IngestCollector struct {
	src SnapshotSource
}

// NewIngestCollector creates a collector reading from src on every scrape.
func NewIngestCollector(src SnapshotSource) *IngestCollector {
	return &IngestCollector{src: src}
}

// Describe implements prometheus.Collector.
func (c *IngestCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- ingestStreamsDesc
	ch <- ingestBytesDesc
	ch <- ingestReadsDesc
	ch <- ingestUptimeDesc
}

// Collect implements prometheus.Collector.
func (c *IngestCollector) Collect(ch chan<- prometheus.Metric) {
	snaps := c.src.Snapshots()
	ch <- prometheus.MustNewConstMetric(ingestStreamsDesc, prometheus.GaugeValue, float64(len(snaps)))
	for _, s := range snaps {
		st := s.Ingest
		ch <- prometheus.MustNewConstMetric(ingestBytesDesc, prometheus.CounterValue, float64(st.BytesReceived), s.Key, st.RemoteAddr)
		ch <- prometheus.MustNewConstMetric(ingestReadsDesc, prometheus.CounterValue, float64(st.ReadCount), s.Key, st.RemoteAddr)
		ch <- prometheus.MustNewConstMetric(ingestUptimeDesc, prometheus.GaugeValue, float64(st.UptimeMs)/1000.0, s.Key, st.RemoteAddr)
	}
}
