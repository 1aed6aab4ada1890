package metrics

import (
	"strconv"

	"github.com/openfpv/radiolink/internal/fec/block"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rxlink"

// A Source publishes stats snapshots. It is read from the scrape goroutine.
type Source interface {
	// Snapshot returns the last published snapshot, or nil
	Snapshot() *stats.Snapshot
	// ECBufferStats returns the counters of the rx ec buffer of each stream
	ECBufferStats() map[protocol.StreamID]block.ReceiverStats
}

// Collector exports the published snapshots as Prometheus metrics
type Collector struct {
	source Source

	streamPackets *prometheus.Desc
	streamBytes   *prometheus.Desc
	streamRate    *prometheus.Desc

	interfacePackets *prometheus.Desc
	interfaceBytes   *prometheus.Desc
	interfaceBad     *prometheus.Desc
	interfaceLost    *prometheus.Desc
	interfaceQuality *prometheus.Desc
	interfaceDbm     *prometheus.Desc

	linkPackets *prometheus.Desc
	linkRTDelay *prometheus.Desc

	ecPackets *prometheus.Desc
	ecDropped *prometheus.Desc
	ecBlocks  *prometheus.Desc

	snapshotSequence *prometheus.Desc
}

var _ prometheus.Collector = &Collector{}

// NewCollector creates a collector reading from source
func NewCollector(source Source) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Collector{
		source: source,

		streamPackets: desc("stream", "packets_total", "Packets per stream, duplicates excluded.", "stream", "direction"),
		streamBytes:   desc("stream", "bytes_total", "Bytes per stream, duplicates excluded.", "stream", "direction"),
		streamRate:    desc("stream", "bytes_per_second", "Throughput of the last refresh interval.", "stream", "direction"),

		interfacePackets: desc("interface", "packets_total", "Packets per radio interface.", "interface", "direction"),
		interfaceBytes:   desc("interface", "bytes_total", "Bytes per radio interface.", "interface", "direction"),
		interfaceBad:     desc("interface", "rx_bad_packets_total", "Packets received with a bad CRC or no payload.", "interface"),
		interfaceLost:    desc("interface", "rx_lost_packets_total", "Stream packets never received on the interface.", "interface"),
		interfaceQuality: desc("interface", "rx_quality_percent", "Good packets over the last 2 seconds.", "interface"),
		interfaceDbm:     desc("interface", "signal_dbm", "Signal level of the last packet.", "interface"),

		linkPackets: desc("link", "packets_total", "Packets per radio link, duplicates on the link excluded.", "link", "direction"),
		linkRTDelay: desc("link", "rt_delay_seconds", "Moving average of the round trip delay.", "link"),

		ecPackets: desc("ecbuffer", "packets_total", "Data packets handed out or given up by the rx ec buffer.", "stream", "outcome"),
		ecDropped: desc("ecbuffer", "dropped_total", "Packets rejected by the rx ec buffer.", "stream", "reason"),
		ecBlocks:  desc("ecbuffer", "blocks_total", "Blocks completed by the rx ec buffer.", "stream", "outcome"),

		snapshotSequence: desc("stats", "snapshot_sequence", "Sequence number of the last published snapshot.", "session"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.streamPackets, c.streamBytes, c.streamRate,
		c.interfacePackets, c.interfaceBytes, c.interfaceBad, c.interfaceLost, c.interfaceQuality, c.interfaceDbm,
		c.linkPackets, c.linkRTDelay,
		c.ecPackets, c.ecDropped, c.ecBlocks,
		c.snapshotSequence,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if s := c.source.Snapshot(); s != nil {
		c.collectSnapshot(ch, s)
	}
	for stream, st := range c.source.ECBufferStats() {
		c.collectECBuffer(ch, stream, st)
	}
}

func counter(ch chan<- prometheus.Metric, d *prometheus.Desc, v uint64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
}

func gauge(ch chan<- prometheus.Metric, d *prometheus.Desc, v float64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
}

func (c *Collector) collectSnapshot(ch chan<- prometheus.Metric, s *stats.Snapshot) {
	gauge(ch, c.snapshotSequence, float64(s.Sequence), s.SessionID.String())

	for i, st := range s.Streams {
		if st.RxPackets == 0 && st.TxPackets == 0 {
			continue
		}
		id := strconv.Itoa(i)
		counter(ch, c.streamPackets, st.RxPackets, id, "rx")
		counter(ch, c.streamPackets, st.TxPackets, id, "tx")
		counter(ch, c.streamBytes, st.RxBytes, id, "rx")
		counter(ch, c.streamBytes, st.TxBytes, id, "tx")
		gauge(ch, c.streamRate, float64(st.RxBytesPerSec), id, "rx")
		gauge(ch, c.streamRate, float64(st.TxBytesPerSec), id, "tx")
	}

	for i, in := range s.Interfaces {
		id := strconv.Itoa(i)
		counter(ch, c.interfacePackets, in.RxPackets, id, "rx")
		counter(ch, c.interfacePackets, in.TxPackets, id, "tx")
		counter(ch, c.interfaceBytes, in.RxBytes, id, "rx")
		counter(ch, c.interfaceBytes, in.TxBytes, id, "tx")
		counter(ch, c.interfaceBad, in.RxPacketsBad, id)
		counter(ch, c.interfaceLost, in.RxPacketsLost, id)
		gauge(ch, c.interfaceQuality, float64(in.RxQuality), id)
		if in.LastDbm != stats.NoDbm {
			gauge(ch, c.interfaceDbm, float64(in.LastDbm), id)
		}
	}

	for i, l := range s.Links {
		if l.RxPackets == 0 && l.TxPackets == 0 && l.RTDelayMs == stats.RTDelayNever {
			continue
		}
		id := strconv.Itoa(i)
		counter(ch, c.linkPackets, l.RxPackets, id, "rx")
		counter(ch, c.linkPackets, l.TxPackets, id, "tx")
		if l.RTDelayMs != stats.RTDelayNever {
			gauge(ch, c.linkRTDelay, float64(l.RTDelayMs)/1000, id)
		}
	}
}

func (c *Collector) collectECBuffer(ch chan<- prometheus.Metric, stream protocol.StreamID, st block.ReceiverStats) {
	id := strconv.Itoa(int(stream))
	counter(ch, c.ecPackets, st.Clean, id, "clean")
	counter(ch, c.ecPackets, st.Reconstructed, id, "reconstructed")
	counter(ch, c.ecPackets, st.Skipped, id, "skipped")

	counter(ch, c.ecDropped, st.InvalidPackets, id, "invalid")
	counter(ch, c.ecDropped, st.CRCFailures, id, "crc")
	counter(ch, c.ecDropped, st.DuplicatePackets, id, "duplicate")
	counter(ch, c.ecDropped, st.DroppedOld, id, "old")
	counter(ch, c.ecDropped, st.DroppedBeforeStart, id, "before_start")

	counter(ch, c.ecBlocks, st.CleanBlocks, id, "clean")
	counter(ch, c.ecBlocks, st.ReconstructedBlocks, id, "reconstructed")
	counter(ch, c.ecBlocks, st.DecodeFailures, id, "decode_failed")
}
