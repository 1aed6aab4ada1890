package metrics

import (
	"io"
	"net/http/httptest"
	"time"

	"github.com/openfpv/radiolink/internal/fec/block"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeSource struct {
	snapshot *stats.Snapshot
	ec       map[protocol.StreamID]block.ReceiverStats
}

func (s *fakeSource) Snapshot() *stats.Snapshot { return s.snapshot }

func (s *fakeSource) ECBufferStats() map[protocol.StreamID]block.ReceiverStats { return s.ec }

var _ = Describe("Collector", func() {
	var source *fakeSource

	BeforeEach(func() {
		t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		r := stats.NewRadioStats(stats.Config{Interfaces: 1, InterfaceLinks: []int{0}})
		r.UpdateOnPacketReceived(t0, 0, &stats.ReceivedPacket{Stream: protocol.StreamIDVideo, StreamPacketIndex: 1, Length: 100, CRCOk: true, Dbm: -42})
		r.SetRadioLinkRTDelay(0, 10*time.Millisecond)
		source = &fakeSource{
			snapshot: r.Snapshot(t0),
			ec: map[protocol.StreamID]block.ReceiverStats{
				protocol.StreamIDVideo: {Clean: 7, Reconstructed: 2, Skipped: 1},
			},
		}
	})

	It("exports nothing before the first snapshot", func() {
		source.snapshot = nil
		source.ec = nil
		Expect(testutil.CollectAndCount(NewCollector(source))).To(BeZero())
	})

	It("exports the stats of active streams, interfaces and links", func() {
		c := NewCollector(source)
		Expect(testutil.CollectAndCount(c, "rxlink_stream_packets_total")).To(Equal(2))
		Expect(testutil.CollectAndCount(c, "rxlink_interface_signal_dbm")).To(Equal(1))
		Expect(testutil.CollectAndCount(c, "rxlink_link_rt_delay_seconds")).To(Equal(1))
		Expect(testutil.CollectAndCount(c, "rxlink_ecbuffer_packets_total")).To(Equal(3))
		Expect(testutil.CollectAndCount(c, "rxlink_stats_snapshot_sequence")).To(Equal(1))
	})

	It("serves the metrics", func() {
		reg, err := NewRegistry(source)
		Expect(err).ToNot(HaveOccurred())
		rec := httptest.NewRecorder()
		NewHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", PathDefault, nil))
		body, err := io.ReadAll(rec.Result().Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`rxlink_ecbuffer_packets_total{outcome="reconstructed",stream="3"} 2`))
		Expect(string(body)).To(ContainSubstring(`rxlink_interface_signal_dbm{interface="0"} -42`))
		Expect(string(body)).To(ContainSubstring("go_goroutines"))
	})

	It("can't be registered twice", func() {
		reg := prometheus.NewRegistry()
		Expect(reg.Register(NewCollector(source))).To(Succeed())
		Expect(reg.Register(NewCollector(source))).ToNot(Succeed())
	})
})
