// Package toylink simulates lossy radio interfaces between a block sender
// and a Receiver. It is deterministic for a given seed.
package toylink

import (
	"bytes"
	"math/rand"
	"time"

	"github.com/gammazero/deque"
	"github.com/openfpv/radiolink"
	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/fec/block"
	fec_utils "github.com/openfpv/radiolink/internal/fec/utils"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/wire"
	"github.com/pkg/errors"
)

// InterfaceCondition describes how one radio interface mangles the packets it receives.
// Probabilities are in [0, 1].
type InterfaceCondition struct {
	Loss      float64
	Duplicate float64
	// Reorder holds a packet back by ReorderDepth packets
	Reorder      float64
	ReorderDepth int
	// BadCRC fails the radio header check
	BadCRC float64
	// Corrupt flips a payload bit the radio header check does not catch
	Corrupt  float64
	Dbm      int
	DataRate int
}

// Config of a Link
type Config struct {
	Stream     radiolink.StreamConfig
	Interfaces []InterfaceCondition
	// PacketInterval is the airtime of one packet
	PacketInterval time.Duration
	Seed           int64
	Start          time.Time
}

// Stats counts what happened on all interfaces
type Stats struct {
	Payloads   int
	Packets    int // sent, data and EC
	Delivered  int
	Lost       int
	Duplicated int
	Reordered  int
	BadCRC     int
	Corrupted  int
}

type heldPacket struct {
	releaseAt int
	packet    *radiolink.RxPacket
}

type radioInterface struct {
	InterfaceCondition
	queue deque.Deque[*radiolink.RxPacket]
	held  deque.Deque[heldPacket]
}

// A Link carries one stream over simulated radio interfaces
type Link struct {
	conf   Config
	rand   *rand.Rand
	sender *block.BlockFrameworkSender

	interfaces []*radioInterface
	now        time.Time
	seq        uint32
	nextBlock  protocol.BlockIndex

	sent  map[[2]int][]byte
	stats Stats
}

// New creates a Link. The stream config must be valid.
func New(conf Config) (*Link, error) {
	if len(conf.Interfaces) == 0 || len(conf.Interfaces) > protocol.MaxRadioInterfaces {
		return nil, errors.Errorf("need between 1 and %d interfaces", protocol.MaxRadioInterfaces)
	}
	scheme, ok := protocol.ParseFECSchemeName(conf.Stream.FECScheme)
	if !ok {
		return nil, errors.Errorf("unknown FEC scheme %q", conf.Stream.FECScheme)
	}
	var checksum crypto.PacketChecksum
	if conf.Stream.EnableCRC {
		checksum = crypto.NewCRC32Checksum()
	}
	var controller fec.RedundancyController
	if scheme != protocol.FECDisabled {
		controller = block.NewConstantRedundancyController(conf.Stream.DataPackets, conf.Stream.ECPackets)
	}
	sender, err := fec_utils.CreateFrameworkSenderFromFECSchemeID(scheme, controller, checksum, conf.Stream.PacketLength)
	if err != nil {
		return nil, errors.Wrap(err, "creating the sender")
	}
	if conf.PacketInterval <= 0 {
		conf.PacketInterval = time.Millisecond
	}
	if conf.Start.IsZero() {
		conf.Start = time.Unix(0, 0)
	}
	l := &Link{
		conf:   conf,
		rand:   rand.New(rand.NewSource(conf.Seed)),
		sender: sender,
		now:    conf.Start,
		sent:   make(map[[2]int][]byte),
	}
	for _, c := range conf.Interfaces {
		l.interfaces = append(l.interfaces, &radioInterface{InterfaceCondition: c})
	}
	return l, nil
}

// Now is the simulated time
func (l *Link) Now() time.Time {
	return l.now
}

// Advance moves the simulated time forward
func (l *Link) Advance(d time.Duration) {
	l.now = l.now.Add(d)
}

func (l *Link) Stats() Stats {
	return l.stats
}

// Send protects a payload and transmits the packets that are complete
func (l *Link) Send(payload []byte) error {
	l.stats.Payloads++
	if l.sender == nil {
		l.transmit(fec.SentPacket{BlockIndex: l.nextBlock, Data: append([]byte(nil), payload...)}, true)
		l.nextBlock++
		return nil
	}
	if err := l.sender.ProtectPayload(payload); err != nil {
		return err
	}
	l.transmitPending()
	return nil
}

// Flush pads and transmits the current block
func (l *Link) Flush() error {
	if l.sender == nil {
		return nil
	}
	if err := l.sender.Flush(); err != nil {
		return err
	}
	l.transmitPending()
	return nil
}

func (l *Link) transmitPending() {
	for _, p := range l.sender.PopPackets() {
		l.transmit(p, int(p.PacketIndex) < l.conf.Stream.DataPackets)
	}
}

func (l *Link) transmit(p fec.SentPacket, isData bool) {
	if isData {
		l.sent[[2]int{int(p.BlockIndex), int(p.PacketIndex)}] = p.Data
	}
	l.stats.Packets++
	l.now = l.now.Add(l.conf.PacketInterval)
	seq := l.seq
	l.seq++
	for i, iface := range l.interfaces {
		iface.release(l.stats.Packets)
		if l.rand.Float64() < iface.Loss {
			l.stats.Lost++
			continue
		}
		rx := &radiolink.RxPacket{
			Interface:         i,
			Stream:            l.conf.Stream.ID,
			StreamPacketIndex: seq,
			BlockIndex:        p.BlockIndex,
			PacketIndex:       p.PacketIndex,
			Payload:           append([]byte(nil), p.Data...),
			ReceivedTime:      l.now,
			CRCOk:             true,
			Dbm:               iface.Dbm,
			DataRate:          iface.DataRate,
			Video:             l.conf.Stream.ID == protocol.StreamIDVideo,
		}
		if l.rand.Float64() < iface.BadCRC {
			rx.CRCOk = false
			l.stats.BadCRC++
		} else if len(rx.Payload) > 0 && l.rand.Float64() < iface.Corrupt {
			rx.Payload[l.rand.Intn(len(rx.Payload))] ^= 1 << uint(l.rand.Intn(8))
			l.stats.Corrupted++
		}
		if iface.ReorderDepth > 0 && l.rand.Float64() < iface.Reorder {
			iface.held.PushBack(heldPacket{releaseAt: l.stats.Packets + iface.ReorderDepth, packet: rx})
			l.stats.Reordered++
		} else {
			iface.queue.PushBack(rx)
		}
		if l.rand.Float64() < iface.Duplicate {
			dup := *rx
			iface.queue.PushBack(&dup)
			l.stats.Duplicated++
		}
	}
}

func (i *radioInterface) release(sent int) {
	for i.held.Len() > 0 && i.held.Front().releaseAt <= sent {
		i.queue.PushBack(i.held.PopFront().packet)
	}
}

// Deliver hands the packets received so far to h, interface by interface
func (l *Link) Deliver(h func(*radiolink.RxPacket)) int {
	n := 0
	for _, iface := range l.interfaces {
		for iface.queue.Len() > 0 {
			h(iface.queue.PopFront())
			n++
		}
	}
	l.stats.Delivered += n
	return n
}

// Drain releases the packets held back for reordering and delivers everything
func (l *Link) Drain(h func(*radiolink.RxPacket)) int {
	for _, iface := range l.interfaces {
		for iface.held.Len() > 0 {
			iface.queue.PushBack(iface.held.PopFront().packet)
		}
	}
	return l.Deliver(h)
}

// Verify reports whether an output frame carries the data packet that was sent
func (l *Link) Verify(f *wire.PayloadFrame) bool {
	sent, ok := l.sent[[2]int{int(f.BlockIndex), int(f.PacketIndex)}]
	return ok && bytes.Equal(sent, f.Data)
}
