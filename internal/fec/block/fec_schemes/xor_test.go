package fec_schemes

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("XOR FEC scheme", func() {
	const packetLength = 37

	for _, optimize := range []bool{true, false} {
		scheme := &XORFECScheme{dontOptimize: !optimize}

		Context(map[bool]string{true: "with word-wise XOR", false: "with byte-wise XOR"}[optimize], func() {
			It("recovers a missing data packet", func() {
				data := makePackets(5, packetLength, 9)
				ec := makePackets(1, packetLength, 0)
				Expect(scheme.Encode(packetLength, data, ec)).To(Succeed())
				damaged := copyPackets(data)
				damaged[3] = damaged[3][:0]
				Expect(scheme.Decode(packetLength, damaged, ec, []int{0}, []int{3})).To(Succeed())
				Expect(damaged[3][:packetLength]).To(Equal(data[3]))
			})
		})
	}

	It("generates the XOR of all data packets", func() {
		scheme := &XORFECScheme{}
		data := [][]byte{{0x0f, 0xf0}, {0xff, 0x00}, {0x01, 0x01}}
		ec := [][]byte{make([]byte, 2)}
		Expect(scheme.Encode(2, data, ec)).To(Succeed())
		Expect(ec[0]).To(Equal([]byte{0xf1, 0xf1}))
	})

	It("cannot generate more than one EC packet", func() {
		scheme := &XORFECScheme{}
		Expect(scheme.Encode(2, [][]byte{{1, 2}}, makePackets(2, 2, 0))).To(MatchError(XORFECSchemeTooMuchPacketsNeeded))
	})

	It("cannot recover two packets", func() {
		scheme := &XORFECScheme{}
		data := makePackets(3, 4, 0)
		Expect(scheme.Decode(4, data, makePackets(1, 4, 0), []int{0}, []int{0, 1})).To(MatchError(XORFECSchemeCannotRecoverPacket))
	})

	It("cannot recover from an EC packet other than the first", func() {
		scheme := &XORFECScheme{}
		data := makePackets(3, 4, 0)
		Expect(scheme.Decode(4, data, makePackets(1, 4, 0), []int{1}, []int{0})).To(MatchError(XORFECSchemeCannotRecoverPacket))
	})
})
