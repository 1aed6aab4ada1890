package radiolink

import (
	"errors"
	"time"

	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/utils"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stream block sorter", func() {
	const maxBlockWait = 50 * time.Millisecond

	var (
		conf  *StreamConfig
		start time.Time
	)

	BeforeEach(func() {
		wait := maxBlockWait
		conf = &StreamConfig{
			ID:           protocol.StreamIDTelemetry,
			FECScheme:    "reed-solomon",
			MaxBlocks:    8,
			DataPackets:  4,
			ECPackets:    2,
			PacketLength: 100,
			EnableCRC:    true,
			MaxBlockWait: &wait,
		}
		start = time.Now()
	})

	newSorter := func() *streamBlockSorter {
		s, err := newStreamBlockSorter(conf.ID, conf, nil, utils.DefaultLogger)
		Expect(err).ToNot(HaveOccurred())
		return s
	}

	push := func(s *streamBlockSorter, p fec.SentPacket) {
		s.Push(&RxPacket{
			Stream:       conf.ID,
			BlockIndex:   p.BlockIndex,
			PacketIndex:  p.PacketIndex,
			Payload:      p.Data,
			ReceivedTime: start,
		})
	}

	It("rejects unknown schemes", func() {
		conf.FECScheme = "ldpc"
		_, err := newStreamBlockSorter(conf.ID, conf, nil, utils.DefaultLogger)
		Expect(err).To(MatchError(ContainSubstring("unknown FEC scheme")))
	})

	It("pops packets in order", func() {
		sent := protect(conf, []byte("foo"), []byte("bar"), []byte("baz"), []byte("qux"))
		Expect(sent).To(HaveLen(6))
		s := newSorter()
		for _, p := range sent {
			push(s, p)
		}
		for i := 0; i < 4; i++ {
			p, ok := s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(Equal(protocol.PacketIndex(i)))
			Expect(p.Data).To(Equal(sent[i].Data))
		}
		_, ok := s.Pop(start)
		Expect(ok).To(BeFalse())
		Expect(s.Stats().Outputted).To(BeEquivalentTo(4))
	})

	Context("waiting for missing packets", func() {
		var (
			sent []fec.SentPacket
			s    *streamBlockSorter
		)

		BeforeEach(func() {
			sent = protect(conf, []byte("foo"), []byte("bar"), []byte("baz"), []byte("qux"))
			s = newSorter()
			// packet 1 and both EC packets are missing
			push(s, sent[0])
			push(s, sent[2])
			p, ok := s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(BeZero())
		})

		It("waits up to MaxBlockWait", func() {
			_, ok := s.Pop(start)
			Expect(ok).To(BeFalse())
			_, ok = s.Pop(start.Add(maxBlockWait / 2))
			Expect(ok).To(BeFalse())
			Expect(s.Stats().Skipped).To(BeZero())
		})

		It("outputs the packet if it arrives in time", func() {
			_, ok := s.Pop(start)
			Expect(ok).To(BeFalse())
			push(s, sent[1])
			p, ok := s.Pop(start.Add(maxBlockWait / 2))
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(Equal(protocol.PacketIndex(1)))
			p, ok = s.Pop(start.Add(maxBlockWait / 2))
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(Equal(protocol.PacketIndex(2)))
		})

		It("skips the gap once the stream stalled for MaxBlockWait", func() {
			_, ok := s.Pop(start)
			Expect(ok).To(BeFalse())
			p, ok := s.Pop(start.Add(maxBlockWait))
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(Equal(protocol.PacketIndex(2)))
			Expect(p.Data).To(Equal(sent[2].Data))
			Expect(s.Stats().Skipped).To(BeEquivalentTo(1))
			_, ok = s.Pop(start.Add(maxBlockWait))
			Expect(ok).To(BeFalse())
		})

		It("skips right away without a wait", func() {
			s.maxBlockWait = 0
			p, ok := s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(Equal(protocol.PacketIndex(2)))
		})

		It("takes a zero wait from the config", func() {
			var noWait time.Duration
			conf.MaxBlockWait = &noWait
			s = newSorter()
			Expect(s.maxBlockWait).To(BeZero())
			push(s, sent[0])
			push(s, sent[2])
			p, ok := s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(BeZero())
			p, ok = s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.PacketIndex).To(Equal(protocol.PacketIndex(2)))
		})

		It("uses the default wait when unset", func() {
			conf.MaxBlockWait = nil
			Expect(newSorter().maxBlockWait).To(Equal(protocol.DefaultMaxBlockWait))
		})
	})

	Context("unprotected streams", func() {
		BeforeEach(func() {
			conf.FECScheme = "none"
			conf.MaxBlocks = 1
			conf.DataPackets = 2
		})

		It("passes packets through in arrival order", func() {
			s := newSorter()
			Expect(s.receiver).To(BeNil())
			payload := []byte("foobar")
			s.Push(&RxPacket{Stream: conf.ID, BlockIndex: 7, Payload: payload})
			payload[0] = 'x'
			s.Push(&RxPacket{Stream: conf.ID, BlockIndex: 3, Payload: []byte("baz")})
			p, ok := s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.Data).To(Equal([]byte("foobar")))
			Expect(p.BlockIndex).To(BeEquivalentTo(7))
			p, ok = s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.Data).To(Equal([]byte("baz")))
			_, ok = s.Pop(start)
			Expect(ok).To(BeFalse())
			Expect(s.Stats().Outputted).To(BeEquivalentTo(2))
		})

		It("drops the oldest packets when full", func() {
			s := newSorter()
			for i := 0; i < 3; i++ {
				s.Push(&RxPacket{Stream: conf.ID, Payload: []byte{byte(i)}})
			}
			Expect(s.Stats().Skipped).To(BeEquivalentTo(1))
			p, ok := s.Pop(start)
			Expect(ok).To(BeTrue())
			Expect(p.Data).To(Equal([]byte{1}))
		})
	})

	It("stops outputting when closed", func() {
		sent := protect(conf, []byte("foo"))
		s := newSorter()
		for _, p := range sent {
			push(s, p)
		}
		s.closeForShutdown(errors.New("shutdown"))
		_, ok := s.Pop(start)
		Expect(ok).To(BeFalse())
		push(s, sent[0])
		Expect(s.Stats().Received).To(BeZero())
	})
})
