package block

import (
	"time"

	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/pkg/errors"
)

// ErrArenaTooLarge is returned when the packet pool of a window would exceed protocol.MaxArenaSize
var ErrArenaTooLarge = errors.New("rx ec buffer: packet pool too large")

// A Packet is one slot of a Block. Its payload lives in the arena of the window.
type Packet struct {
	data          []byte
	length        int
	receivedTime  time.Time
	empty         bool
	reconstructed bool
	outputted     bool
}

func (p *Packet) reset() {
	p.length = 0
	p.receivedTime = time.Time{}
	p.empty = true
	p.reconstructed = false
	p.outputted = false
}

// Bytes returns the payload
func (p *Packet) Bytes() []byte {
	return p.data[:p.length]
}

// ReceivedTime is the arrival time. It is zero for reconstructed packets.
func (p *Packet) ReceivedTime() time.Time {
	return p.receivedTime
}

// A Block is a FEC reconstruction unit: dataPackets data slots followed by
// ecPackets EC slots
type Block struct {
	index                protocol.BlockIndex
	empty                bool
	receivedData         int
	receivedEC           int
	maxReceivedDataIndex int
	packets              []Packet
}

func (b *Block) reset() {
	b.index = 0
	b.empty = true
	b.receivedData = 0
	b.receivedEC = 0
	b.maxReceivedDataIndex = -1
	for i := range b.packets {
		b.packets[i].reset()
	}
}

// open recycles the slot for a new block
func (b *Block) open(index protocol.BlockIndex) {
	b.reset()
	b.index = index
	b.empty = false
}

// Index of the block
func (b *Block) Index() protocol.BlockIndex {
	return b.index
}

// newBlocks carves maxBlocks blocks out of a single arena
func newBlocks(maxBlocks, dataPackets, ecPackets, packetLength int) ([]Block, error) {
	perBlock := dataPackets + ecPackets
	if maxBlocks*perBlock*packetLength > protocol.MaxArenaSize {
		return nil, ErrArenaTooLarge
	}
	arena := make([]byte, maxBlocks*perBlock*packetLength)
	packets := make([]Packet, maxBlocks*perBlock)
	blocks := make([]Block, maxBlocks)
	for i := range blocks {
		b := &blocks[i]
		b.packets = packets[i*perBlock : (i+1)*perBlock : (i+1)*perBlock]
		for j := range b.packets {
			offset := (i*perBlock + j) * packetLength
			b.packets[j].data = arena[offset : offset+packetLength : offset+packetLength]
		}
		b.reset()
	}
	return blocks, nil
}
