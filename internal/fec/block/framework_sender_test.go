package block

import (
	"github.com/golang/mock/gomock"
	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block framework sender", func() {
	const packetLength = 50

	var (
		scheme *MockBlockFECScheme
		sender *BlockFrameworkSender
	)

	BeforeEach(func() {
		scheme = NewMockBlockFECScheme(mockCtrl)
		var err error
		sender, err = NewBlockFrameworkSender(scheme, NewConstantRedundancyController(3, 2), crypto.NewCRC32Checksum(), packetLength)
		Expect(err).ToNot(HaveOccurred())
	})

	It("releases data packets right away", func() {
		Expect(sender.ProtectPayload([]byte("foo"))).To(Succeed())
		packets := sender.PopPackets()
		Expect(packets).To(HaveLen(1))
		Expect(packets[0].BlockIndex).To(BeZero())
		Expect(packets[0].PacketIndex).To(BeZero())
		Expect(packets[0].Data).To(HaveLen(packetLength))
		Expect(crypto.NewCRC32Checksum().Verify(packets[0].Data)).To(BeTrue())
		Expect(SourcePacketPayload(packets[0].Data, crypto.NewCRC32Checksum())[:3]).To(Equal([]byte("foo")))
		Expect(sender.PopPackets()).To(BeEmpty())
	})

	It("adds EC packets once a block is full", func() {
		scheme.EXPECT().Encode(packetLength, gomock.Any(), gomock.Any()).DoAndReturn(func(l int, data, ec [][]byte) error {
			Expect(data).To(HaveLen(3))
			Expect(ec).To(HaveLen(2))
			ec[0][0] = 0xec
			return nil
		})
		for i := 0; i < 3; i++ {
			Expect(sender.ProtectPayload([]byte{byte(i)})).To(Succeed())
		}
		packets := sender.PopPackets()
		Expect(packets).To(HaveLen(5))
		for i, p := range packets {
			Expect(p.BlockIndex).To(BeZero())
			Expect(p.PacketIndex).To(BeEquivalentTo(i))
		}
		Expect(packets[3].Data[0]).To(BeEquivalentTo(0xec))
		Expect(sender.CurrentBlock()).To(BeEquivalentTo(1))
	})

	It("pads the block when flushing", func() {
		scheme.EXPECT().Encode(packetLength, gomock.Any(), gomock.Any())
		Expect(sender.ProtectPayload([]byte("foo"))).To(Succeed())
		Expect(sender.Flush()).To(Succeed())
		var packets []fec.SentPacket
		packets = sender.PopPackets()
		Expect(packets).To(HaveLen(5))
		Expect(sender.CurrentBlock()).To(BeEquivalentTo(1))
	})

	It("doesn't flush an empty block", func() {
		Expect(sender.Flush()).To(Succeed())
		Expect(sender.PopPackets()).To(BeEmpty())
		Expect(sender.CurrentBlock()).To(BeZero())
	})

	It("refuses payloads that don't fit", func() {
		err := sender.ProtectPayload(make([]byte, packetLength))
		Expect(err).To(MatchError(ContainSubstring(ErrPayloadTooLarge.Error())))
		Expect(errors.Cause(err)).To(Equal(ErrPayloadTooLarge))
	})

	It("refuses invalid geometries", func() {
		_, err := NewBlockFrameworkSender(scheme, NewConstantRedundancyController(0, 2), nil, packetLength)
		Expect(err).To(HaveOccurred())
		_, err = NewBlockFrameworkSender(scheme, NewDefaultRedundancyController(), nil, 5000)
		Expect(err).To(HaveOccurred())
		_, err = NewBlockFrameworkSender(scheme, NewDefaultRedundancyController(), crypto.NewCRC32Checksum(), 4)
		Expect(err).To(HaveOccurred())
	})
})
