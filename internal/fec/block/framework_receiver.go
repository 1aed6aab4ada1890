package block

import (
	"time"

	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/utils"
)

// ReceiverConfig is the geometry of the blocks of a stream
type ReceiverConfig struct {
	MaxBlocks    int
	DataPackets  int
	ECPackets    int
	PacketLength int
	// Checksum verifies data packets, on arrival and after reconstruction.
	// Nil disables verification.
	Checksum crypto.PacketChecksum
	Observer fec.BlockObserver
	Logger   utils.Logger
}

// The BlockFrameworkReceiver is the rx ec buffer of one stream. It keeps a
// window of maxBlocks blocks, reconstructs missing data packets as soon as
// enough EC packets arrived, and hands data packets out in order.
type BlockFrameworkReceiver struct {
	fecScheme BlockFECScheme
	checksum  crypto.PacketChecksum
	observer  fec.BlockObserver
	logger    utils.Logger

	maxBlocks    int
	dataPackets  int
	ecPackets    int
	packetLength int
	disabled     bool

	blocks []Block
	// top is the newest block, bottom the block holding the output cursor
	top          utils.RingIndex
	bottom       utils.RingIndex
	bottomPacket int

	// scratch for Decode, allocated once
	dataShards [][]byte
	ecShards   [][]byte
	ecIndexes  []int
	missing    []int

	stats ReceiverStats
}

var _ fec.FrameworkReceiver = &BlockFrameworkReceiver{}

// NewBlockFrameworkReceiver allocates the window. The geometry is clamped to
// the protocol limits. If the packet pool cannot be allocated, the receiver
// is disabled: it accepts calls but never outputs anything.
func NewBlockFrameworkReceiver(fecScheme BlockFECScheme, conf *ReceiverConfig) *BlockFrameworkReceiver {
	logger := conf.Logger
	if logger == nil {
		logger = utils.DefaultLogger.WithPrefix("ecbuf")
	}
	f := &BlockFrameworkReceiver{
		fecScheme:    fecScheme,
		checksum:     conf.Checksum,
		observer:     conf.Observer,
		logger:       logger,
		maxBlocks:    clamp(conf.MaxBlocks, 1, protocol.MaxBlocksInWindow),
		dataPackets:  clamp(conf.DataPackets, 1, protocol.MaxDataPacketsInBlock),
		ecPackets:    clamp(conf.ECPackets, 1, protocol.MaxECPacketsInBlock),
		packetLength: clamp(conf.PacketLength, 1, protocol.MaxPacketPayload),
	}
	blocks, err := newBlocks(f.maxBlocks, f.dataPackets, f.ecPackets, f.packetLength)
	if err != nil || fecScheme == nil {
		logger.Errorf("Disabling rx ec buffer (%d blocks of %d+%d packets of %d bytes): %v", f.maxBlocks, f.dataPackets, f.ecPackets, f.packetLength, err)
		f.disabled = true
		return f
	}
	f.blocks = blocks
	f.dataShards = make([][]byte, f.dataPackets)
	f.ecShards = make([][]byte, 0, f.ecPackets)
	f.ecIndexes = make([]int, 0, f.ecPackets)
	f.missing = make([]int, 0, f.dataPackets)
	f.resetCursors()
	return f
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Disabled reports whether the packet pool could not be allocated
func (f *BlockFrameworkReceiver) Disabled() bool {
	return f.disabled
}

// Stats returns a copy of the counters
func (f *BlockFrameworkReceiver) Stats() ReceiverStats {
	return f.stats
}

// Reset empties the window and zeroes the counters
func (f *BlockFrameworkReceiver) Reset() {
	if f.disabled {
		return
	}
	for i := range f.blocks {
		f.blocks[i].reset()
	}
	f.resetCursors()
	f.stats = ReceiverStats{}
}

func (f *BlockFrameworkReceiver) resetCursors() {
	f.top = utils.NewRingIndex(0, f.maxBlocks)
	f.bottom = f.top
	f.bottomPacket = 0
}

func (f *BlockFrameworkReceiver) ReceivePacket(blockIndex protocol.BlockIndex, packetIndex protocol.PacketIndex, data []byte, now time.Time) {
	if f.disabled {
		return
	}
	f.stats.Received++
	if int(packetIndex) >= f.dataPackets+f.ecPackets {
		f.stats.InvalidPackets++
		if f.logger.Debug() {
			f.logger.Debugf("Dropping packet %d of block %d: only %d+%d packets per block", packetIndex, blockIndex, f.dataPackets, f.ecPackets)
		}
		return
	}
	if len(data) == 0 || len(data) > f.packetLength {
		f.stats.InvalidPackets++
		if f.logger.Debug() {
			f.logger.Debugf("Dropping packet %d of block %d: invalid length %d (max %d)", packetIndex, blockIndex, len(data), f.packetLength)
		}
		return
	}
	if f.checksum != nil && int(packetIndex) < f.dataPackets && !f.checksum.Verify(data) {
		f.stats.CRCFailures++
		if f.logger.Debug() {
			f.logger.Debugf("Dropping packet %d of block %d: CRC mismatch", packetIndex, blockIndex)
		}
		return
	}

	top := &f.blocks[f.top.Val()]
	if top.empty {
		f.bootstrap(blockIndex, packetIndex, data, now)
		return
	}
	if blockIndex == top.index {
		f.addPacket(f.top, packetIndex, data, now)
		return
	}
	if top.index > protocol.StreamRestartThreshold && blockIndex < top.index-protocol.StreamRestartThreshold {
		f.logger.Infof("Stream restarted: received block %d while at block %d", blockIndex, top.index)
		f.stats.Restarts++
		f.clear()
		f.bootstrap(blockIndex, packetIndex, data, now)
		return
	}
	window := protocol.BlockIndex(f.maxBlocks - 1)
	if blockIndex < top.index {
		// the blocks from bottom to top carry consecutive indexes
		behind := int(top.index - blockIndex)
		if behind > f.bottom.Distance(f.top) || behind >= f.maxBlocks-1 {
			f.stats.DroppedOld++
			return
		}
		f.addPacket(f.top.Sub(behind), packetIndex, data, now)
		return
	}
	if blockIndex-top.index >= window {
		f.logger.Infof("Jumped from block %d to block %d, clearing the window", top.index, blockIndex)
		f.stats.Gaps++
		f.clear()
		f.bootstrap(blockIndex, packetIndex, data, now)
		return
	}
	for top.index != blockIndex {
		f.advanceTop()
		top = &f.blocks[f.top.Val()]
	}
	f.addPacket(f.top, packetIndex, data, now)
}

// bootstrap starts an empty window. Only the first packet of a block may do so.
func (f *BlockFrameworkReceiver) bootstrap(blockIndex protocol.BlockIndex, packetIndex protocol.PacketIndex, data []byte, now time.Time) {
	if packetIndex != 0 {
		f.stats.DroppedBeforeStart++
		return
	}
	f.blocks[f.top.Val()].open(blockIndex)
	f.addPacket(f.top, packetIndex, data, now)
}

func (f *BlockFrameworkReceiver) advanceTop() {
	next := f.top.Inc()
	if next.Equals(f.bottom) {
		f.abandonBottom()
	}
	index := f.blocks[f.top.Val()].index + 1
	f.top = next
	f.blocks[next.Val()].open(index)
}

// abandonBottom gives up the block at the output cursor because the window needs its slot
func (f *BlockFrameworkReceiver) abandonBottom() {
	b := &f.blocks[f.bottom.Val()]
	skipped := 0
	for i := f.bottomPacket; i < f.dataPackets; i++ {
		if !b.packets[i].outputted {
			skipped++
		}
	}
	if f.logger.Debug() {
		f.logger.Debugf("Abandoning block %d with %d data packets never output", b.index, skipped)
	}
	f.skip(skipped)
	f.bottom = f.bottom.Inc()
	f.bottomPacket = 0
}

// clear empties the window. Data packets that were never output count as skipped.
func (f *BlockFrameworkReceiver) clear() {
	skipped := 0
	if !f.blocks[f.top.Val()].empty {
		slot, first := f.bottom, f.bottomPacket
		for {
			b := &f.blocks[slot.Val()]
			for i := first; i < f.dataPackets; i++ {
				if !b.packets[i].outputted {
					skipped++
				}
			}
			if slot.Equals(f.top) {
				break
			}
			slot, first = slot.Inc(), 0
		}
	}
	for i := range f.blocks {
		f.blocks[i].reset()
	}
	f.resetCursors()
	f.skip(skipped)
}

func (f *BlockFrameworkReceiver) skip(n int) {
	if n <= 0 {
		return
	}
	f.stats.Skipped += uint64(n)
	if f.observer != nil {
		f.observer.OnPacketsSkipped(n)
	}
}

func (f *BlockFrameworkReceiver) addPacket(slot utils.RingIndex, packetIndex protocol.PacketIndex, data []byte, now time.Time) {
	b := &f.blocks[slot.Val()]
	p := &b.packets[packetIndex]
	if !p.empty {
		f.stats.DuplicatePackets++
		return
	}
	b.empty = false
	n := copy(p.data, data)
	clear(p.data[n:])
	p.length = n
	p.receivedTime = now
	p.empty = false
	p.reconstructed = false
	p.outputted = false

	if idx := int(packetIndex); idx < f.dataPackets {
		b.receivedData++
		if idx > b.maxReceivedDataIndex {
			b.maxReceivedDataIndex = idx
		}
		if b.receivedData == f.dataPackets {
			f.stats.CleanBlocks++
			if f.observer != nil {
				f.observer.OnBlockClean(b.index)
			}
		}
	} else {
		b.receivedEC++
	}
	f.reconstruct(b)
}

// reconstruct decodes the missing data packets of a block once enough EC packets arrived
func (f *BlockFrameworkReceiver) reconstruct(b *Block) {
	if b.receivedData >= f.dataPackets || b.receivedData+b.receivedEC < f.dataPackets {
		return
	}
	missing := f.missing[:0]
	for i := 0; i < f.dataPackets; i++ {
		p := &b.packets[i]
		if p.empty {
			missing = append(missing, i)
			f.dataShards[i] = p.data[:0]
		} else {
			f.dataShards[i] = p.data
		}
	}
	ec := f.ecShards[:0]
	ecIndexes := f.ecIndexes[:0]
	for i := 0; i < f.ecPackets && len(ec) < len(missing); i++ {
		if p := &b.packets[f.dataPackets+i]; !p.empty {
			ec = append(ec, p.data)
			ecIndexes = append(ecIndexes, i)
		}
	}
	if err := f.fecScheme.Decode(f.packetLength, f.dataShards, ec, ecIndexes, missing); err != nil {
		f.stats.DecodeFailures++
		f.logger.Debugf("Failed to reconstruct %d packets of block %d: %s", len(missing), b.index, err)
		return
	}
	if f.checksum != nil {
		for _, i := range missing {
			if !f.checksum.Verify(b.packets[i].data) {
				f.stats.CRCFailures++
				f.logger.Debugf("Discarding reconstruction of block %d: CRC mismatch on packet %d", b.index, i)
				return
			}
		}
	}
	for _, i := range missing {
		p := &b.packets[i]
		p.empty = false
		p.reconstructed = true
		p.outputted = false
		p.length = f.packetLength
		b.receivedData++
		if i > b.maxReceivedDataIndex {
			b.maxReceivedDataIndex = i
		}
	}
	f.stats.ReconstructedBlocks++
	if f.observer != nil {
		f.observer.OnBlockReconstructed(b.index, len(missing))
	}
}

// NextPacket moves the output cursor to the next data packet that was not output yet.
// Missing packets of the newest block are waited for, unless pushIncompleteBlocks is set.
// Missing packets of older blocks are skipped.
func (f *BlockFrameworkReceiver) NextPacket(pushIncompleteBlocks bool) (fec.OutputPacket, bool) {
	if f.disabled || f.blocks[f.top.Val()].empty {
		return fec.OutputPacket{}, false
	}
	for budget := f.maxBlocks * f.dataPackets; budget > 0; budget-- {
		b := &f.blocks[f.bottom.Val()]
		p := &b.packets[f.bottomPacket]
		if !p.empty && !p.outputted {
			return f.output(b, p), true
		}
		if f.bottom.Equals(f.top) {
			if f.bottomPacket >= b.maxReceivedDataIndex {
				return fec.OutputPacket{}, false
			}
			if p.empty && !pushIncompleteBlocks {
				return fec.OutputPacket{}, false
			}
		}
		if !p.outputted {
			f.skip(1)
		}
		f.bottomPacket++
		if f.bottomPacket >= f.dataPackets {
			f.bottomPacket = 0
			f.bottom = f.bottom.Inc()
		}
	}
	f.logger.Errorf("Output cursor walked past the window: bottom block %d packet %d, top block %d",
		f.blocks[f.bottom.Val()].index, f.bottomPacket, f.blocks[f.top.Val()].index)
	return fec.OutputPacket{}, false
}

func (f *BlockFrameworkReceiver) output(b *Block, p *Packet) fec.OutputPacket {
	p.outputted = true
	f.stats.Outputted++
	if p.reconstructed {
		f.stats.Reconstructed++
	} else {
		f.stats.Clean++
	}
	return fec.OutputPacket{
		Data:          p.Bytes(),
		BlockIndex:    b.index,
		PacketIndex:   protocol.PacketIndex(f.bottomPacket),
		Reconstructed: p.reconstructed,
	}
}

// HasPending reports whether data packets beyond the output cursor were received
func (f *BlockFrameworkReceiver) HasPending() bool {
	if f.disabled || f.blocks[f.top.Val()].empty {
		return false
	}
	if !f.bottom.Equals(f.top) {
		return true
	}
	return f.bottomPacket < f.blocks[f.top.Val()].maxReceivedDataIndex
}
