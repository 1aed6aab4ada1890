package block_test

import (
	"time"

	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	. "github.com/openfpv/radiolink/internal/fec/block"
	"github.com/openfpv/radiolink/internal/fec/block/fec_schemes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Rx EC buffer with Reed-Solomon", func() {
	const (
		packetLength = 100
		nData        = 4
		nEC          = 2
	)

	var (
		checksum crypto.PacketChecksum
		receiver *BlockFrameworkReceiver
		sent     []fec.SentPacket
	)

	BeforeEach(func() {
		checksum = crypto.NewCRC32Checksum()
		rs, err := fec_schemes.NewReedSolomonFECScheme()
		Expect(err).ToNot(HaveOccurred())
		sender, err := NewBlockFrameworkSender(rs, NewConstantRedundancyController(nData, nEC), checksum, packetLength)
		Expect(err).ToNot(HaveOccurred())
		for i := 0; i < 2*nData; i++ {
			Expect(sender.ProtectPayload([]byte{'p', byte(i)})).To(Succeed())
		}
		sent = sender.PopPackets()
		Expect(sent).To(HaveLen(2 * (nData + nEC)))

		decoder, err := fec_schemes.NewReedSolomonFECScheme()
		Expect(err).ToNot(HaveOccurred())
		receiver = NewBlockFrameworkReceiver(decoder, &ReceiverConfig{
			MaxBlocks:    8,
			DataPackets:  nData,
			ECPackets:    nEC,
			PacketLength: packetLength,
			Checksum:     checksum,
		})
	})

	deliver := func(lost map[[2]int]bool) {
		for _, p := range sent {
			if lost[[2]int{int(p.BlockIndex), int(p.PacketIndex)}] {
				continue
			}
			receiver.ReceivePacket(p.BlockIndex, p.PacketIndex, p.Data, time.Now())
		}
	}

	drain := func() ([][]byte, int) {
		var out [][]byte
		reconstructed := 0
		for {
			p, ok := receiver.NextPacket(true)
			if !ok {
				return out, reconstructed
			}
			if p.Reconstructed {
				reconstructed++
			}
			out = append(out, append([]byte(nil), p.Data...))
		}
	}

	dataPackets := func() [][]byte {
		var data [][]byte
		for _, p := range sent {
			if int(p.PacketIndex) < nData {
				data = append(data, p.Data)
			}
		}
		return data
	}

	It("outputs every data packet when nothing is lost", func() {
		deliver(nil)
		out, reconstructed := drain()
		Expect(reconstructed).To(BeZero())
		Expect(out).To(Equal(dataPackets()))
	})

	It("reconstructs byte-identical packets when no more data packets than EC packets are lost", func() {
		deliver(map[[2]int]bool{{0, 1}: true, {0, 3}: true, {1, 2}: true, {1, 4}: true})
		out, reconstructed := drain()
		Expect(reconstructed).To(Equal(3))
		Expect(out).To(Equal(dataPackets()))
		Expect(receiver.Stats().ReconstructedBlocks).To(BeEquivalentTo(2))
		Expect(receiver.Stats().Skipped).To(BeZero())
	})

	It("never returns packets that cannot be reconstructed, and skips each of them once", func() {
		deliver(map[[2]int]bool{{0, 1}: true, {0, 2}: true, {0, 3}: true})
		out, reconstructed := drain()
		Expect(reconstructed).To(BeZero())
		Expect(out).To(HaveLen(nData + 1))
		Expect(out[0]).To(Equal(sent[0].Data))
		for _, p := range out[1:] {
			Expect(checksum.Verify(p)).To(BeTrue())
		}
		Expect(receiver.Stats().Skipped).To(BeEquivalentTo(3))
		Expect(receiver.Stats().DecodeFailures).To(BeZero())
	})
})
