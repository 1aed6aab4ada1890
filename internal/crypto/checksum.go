package crypto

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// ErrChecksumMismatch is returned when a packet fails verification
var ErrChecksumMismatch = errors.New("packet checksum mismatch")

// ErrPacketTooShort is returned when a packet cannot even hold the checksum
var ErrPacketTooShort = errors.New("packet too short for checksum")

// A PacketChecksum protects radio payloads against corruption.
// It is not authentication.
type PacketChecksum interface {
	// Seal appends the checksum header and payload to dst
	Seal(dst, payload []byte) []byte
	// Open verifies a sealed packet and returns the payload without the header
	Open(packet []byte) ([]byte, error)
	// Verify checks a sealed packet in place
	Verify(packet []byte) bool
	Overhead() int
}

const crc32Overhead = 4

type crc32Checksum struct{}

var _ PacketChecksum = crc32Checksum{}

// NewCRC32Checksum returns the checksum used on radio packets: a little endian
// CRC32 (IEEE) of the payload, prepended to it
func NewCRC32Checksum() PacketChecksum {
	return crc32Checksum{}
}

func (crc32Checksum) Overhead() int { return crc32Overhead }

func (crc32Checksum) Seal(dst, payload []byte) []byte {
	var hdr [crc32Overhead]byte
	binary.LittleEndian.PutUint32(hdr[:], crc32.ChecksumIEEE(payload))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

func (c crc32Checksum) Open(packet []byte) ([]byte, error) {
	if len(packet) < crc32Overhead {
		return nil, ErrPacketTooShort
	}
	if !c.Verify(packet) {
		return nil, ErrChecksumMismatch
	}
	return packet[crc32Overhead:], nil
}

func (crc32Checksum) Verify(packet []byte) bool {
	if len(packet) < crc32Overhead {
		return false
	}
	return binary.LittleEndian.Uint32(packet) == crc32.ChecksumIEEE(packet[crc32Overhead:])
}
