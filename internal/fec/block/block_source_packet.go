package block

import (
	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/pkg/errors"
)

// ErrPayloadTooLarge is returned when a payload does not fit into one data packet
var ErrPayloadTooLarge = errors.New("payload does not fit into a data packet")

// NewSourcePacket builds a data packet of exactly packetLength bytes. The
// payload is zero padded and, if a checksum is given, sealed behind its header.
// EC packets are computed over the padded packets, so every packet of a block
// has the same length.
func NewSourcePacket(payload []byte, packetLength int, checksum crypto.PacketChecksum) ([]byte, error) {
	overhead := 0
	if checksum != nil {
		overhead = checksum.Overhead()
	}
	if len(payload) > packetLength-overhead {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d > %d", len(payload), packetLength-overhead)
	}
	padded := make([]byte, packetLength-overhead)
	copy(padded, payload)
	if checksum == nil {
		return padded, nil
	}
	return checksum.Seal(make([]byte, 0, packetLength), padded), nil
}

// SourcePacketPayload strips the checksum header of a data packet
func SourcePacketPayload(packet []byte, checksum crypto.PacketChecksum) []byte {
	if checksum == nil || len(packet) < checksum.Overhead() {
		return packet
	}
	return packet[checksum.Overhead():]
}
