package block

import (
	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/pkg/errors"
)

// The BlockFrameworkSender is the transmit side of a stream. Data packets are
// released as soon as they are protected, EC packets once their block is full.
type BlockFrameworkSender struct {
	fecScheme            BlockFECScheme
	redundancyController fec.RedundancyController
	checksum             crypto.PacketChecksum
	packetLength         int

	currentBlock protocol.BlockIndex
	dataPackets  [][]byte

	packetsToSend []fec.SentPacket
}

var _ fec.FrameworkSender = &BlockFrameworkSender{}

func NewBlockFrameworkSender(fecScheme BlockFECScheme, redundancyController fec.RedundancyController, checksum crypto.PacketChecksum, packetLength int) (*BlockFrameworkSender, error) {
	if packetLength > protocol.MaxPacketPayload {
		return nil, errors.Errorf("framework sender packet size too big: %d > %d", packetLength, protocol.MaxPacketPayload)
	}
	if checksum != nil && packetLength <= checksum.Overhead() {
		return nil, errors.Errorf("framework sender packet size too small: %d", packetLength)
	}
	d, e := redundancyController.GetNumberOfDataPackets(), redundancyController.GetNumberOfECPackets()
	if d < 1 || d > protocol.MaxDataPacketsInBlock || e < 1 || e > protocol.MaxECPacketsInBlock {
		return nil, errors.Errorf("invalid block geometry: %d data packets, %d EC packets", d, e)
	}
	return &BlockFrameworkSender{
		fecScheme:            fecScheme,
		redundancyController: redundancyController,
		checksum:             checksum,
		packetLength:         packetLength,
	}, nil
}

// CurrentBlock returns the index of the block being filled
func (f *BlockFrameworkSender) CurrentBlock() protocol.BlockIndex {
	return f.currentBlock
}

func (f *BlockFrameworkSender) ProtectPayload(payload []byte) error {
	packet, err := NewSourcePacket(payload, f.packetLength, f.checksum)
	if err != nil {
		return err
	}
	f.packetsToSend = append(f.packetsToSend, fec.SentPacket{
		BlockIndex:  f.currentBlock,
		PacketIndex: protocol.PacketIndex(len(f.dataPackets)),
		Data:        packet,
	})
	f.dataPackets = append(f.dataPackets, packet)
	if len(f.dataPackets) >= f.redundancyController.GetNumberOfDataPackets() {
		return f.sendCurrentBlock()
	}
	return nil
}

func (f *BlockFrameworkSender) Flush() error {
	if len(f.dataPackets) == 0 {
		return nil
	}
	for block := f.currentBlock; f.currentBlock == block; {
		if err := f.ProtectPayload(nil); err != nil {
			return err
		}
	}
	return nil
}

func (f *BlockFrameworkSender) sendCurrentBlock() error {
	nData := len(f.dataPackets)
	ec := make([][]byte, f.redundancyController.GetNumberOfECPackets())
	for i := range ec {
		ec[i] = make([]byte, f.packetLength)
	}
	if err := f.fecScheme.Encode(f.packetLength, f.dataPackets, ec); err != nil {
		return err
	}
	for i, packet := range ec {
		f.packetsToSend = append(f.packetsToSend, fec.SentPacket{
			BlockIndex:  f.currentBlock,
			PacketIndex: protocol.PacketIndex(nData + i),
			Data:        packet,
		})
	}
	f.currentBlock++
	f.dataPackets = f.dataPackets[:0]
	return nil
}

func (f *BlockFrameworkSender) PopPackets() []fec.SentPacket {
	packets := f.packetsToSend
	f.packetsToSend = nil
	return packets
}
