package wire

import (
	"bytes"

	"github.com/openfpv/radiolink/internal/protocol"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Payload frame", func() {
	It("writes and parses a frame", func() {
		f := &PayloadFrame{
			Stream:        protocol.StreamIDVideo,
			BlockIndex:    0xdeadbeef,
			PacketIndex:   3,
			Reconstructed: true,
			Data:          []byte("foobar"),
		}
		b := &bytes.Buffer{}
		Expect(f.Write(b)).To(Succeed())
		Expect(b.Len()).To(BeEquivalentTo(f.Length()))
		Expect(b.Bytes()[0]).To(Equal(protocol.PayloadFrameType))
		frame, err := ParseNextFrame(bytes.NewReader(b.Bytes()))
		Expect(err).ToNot(HaveOccurred())
		Expect(frame).To(Equal(f))
	})

	It("refuses payloads that are too big", func() {
		f := &PayloadFrame{Data: make([]byte, protocol.MaxPacketPayload+1)}
		Expect(f.Write(&bytes.Buffer{})).To(MatchError(ContainSubstring("too big")))
	})

	It("refuses invalid streams", func() {
		w := newBodyWriter()
		w.varint(protocol.MaxRadioStreams)
		w.varint(0)
		w.varint(0)
		w.bool(false)
		w.bytes(nil)
		_, err := parsePayloadFrame(w.Bytes())
		Expect(err).To(MatchError(ContainSubstring("invalid stream")))
	})

	It("errors on truncated bodies", func() {
		f := &PayloadFrame{Data: []byte("foobar")}
		body, err := f.body()
		Expect(err).ToNot(HaveOccurred())
		for i := 0; i < len(body); i++ {
			_, err := parsePayloadFrame(body[:i])
			Expect(err).To(HaveOccurred())
		}
	})
})
