package fec_schemes

import (
	"errors"
	"runtime"
	"unsafe"

	. "github.com/openfpv/radiolink/internal/fec/block"
)

// The XORFECScheme protects a block with a single EC packet, the XOR of all data packets
type XORFECScheme struct {
	dontOptimize bool
}

var _ BlockFECScheme = &XORFECScheme{}

var XORFECSchemeCannotRecoverPacket = errors.New("XORFECScheme: cannot recover packet")
var XORFECSchemeTooMuchPacketsNeeded = errors.New("XORFECScheme: cannot generate more than one EC packet")

func (f *XORFECScheme) Encode(packetLength int, data [][]byte, ec [][]byte) error {
	if len(ec) != 1 {
		return XORFECSchemeTooMuchPacketsNeeded
	}
	dst := ec[0][:packetLength]
	clear(dst)
	for _, p := range data {
		f.xorInto(dst, p[:packetLength])
	}
	return nil
}

func (f *XORFECScheme) Decode(packetLength int, data [][]byte, ec [][]byte, ecIndexes []int, missing []int) error {
	if len(missing) == 0 {
		return nil
	}
	if len(missing) != 1 || len(ec) != 1 || len(ecIndexes) != 1 || ecIndexes[0] != 0 {
		return XORFECSchemeCannotRecoverPacket
	}
	m := missing[0]
	dst := data[m][:packetLength]
	copy(dst, ec[0][:packetLength])
	for i, p := range data {
		if i != m {
			f.xorInto(dst, p[:packetLength])
		}
	}
	return nil
}

func (f *XORFECScheme) xorInto(dst, src []byte) {
	if !f.dontOptimize && supportsUnaligned {
		fastXORBytes(dst, src)
	} else {
		slowXOR(dst, src)
	}
}

func slowXOR(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}

const wordSize = int(unsafe.Sizeof(uintptr(0)))
const supportsUnaligned = runtime.GOARCH == "386" || runtime.GOARCH == "amd64" || runtime.GOARCH == "ppc64" || runtime.GOARCH == "ppc64le" || runtime.GOARCH == "s390x"

// fastXORBytes xors src into dst in bulk. It only works on architectures that
// support unaligned read/writes.
func fastXORBytes(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	if n == 0 {
		return
	}
	w := n / wordSize
	if w > 0 {
		dw := unsafe.Slice((*uintptr)(unsafe.Pointer(&dst[0])), w)
		sw := unsafe.Slice((*uintptr)(unsafe.Pointer(&src[0])), w)
		for i := 0; i < w; i++ {
			dw[i] ^= sw[i]
		}
	}
	for i := n - n%wordSize; i < n; i++ {
		dst[i] ^= src[i]
	}
}
