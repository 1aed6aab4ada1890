package stats

import (
	"math"
	"time"

	"github.com/openfpv/radiolink/internal/protocol"
)

const (
	// HistorySlices is the depth of the per interface rx history
	HistorySlices = 40
	// NoGap marks a history slice in which no inter packet gap was measured
	NoGap = 0xFF
	// NoDbm is reported until an interface received a packet
	NoDbm = 200
	// RTDelayNever is reported until a round trip delay was measured
	RTDelayNever = math.MaxUint32

	linkRTWindow     = 10
	commandsRTWindow = 5
	rtDelaySeedMs    = 1000

	maxGapMs      = 254
	qualityWindow = 2 * time.Second
)

// ReceiveResult is returned by UpdateOnPacketReceived
type ReceiveResult int

const (
	// ResultError means the packet was invalid or could not be attributed
	ResultError ReceiveResult = -1
	// ResultDuplicate means the stream already accounted for this packet
	ResultDuplicate ReceiveResult = 0
	// ResultNew means the packet is new on its stream
	ResultNew ReceiveResult = 1
)

func (r ReceiveResult) String() string {
	switch r {
	case ResultError:
		return "error"
	case ResultDuplicate:
		return "duplicate"
	case ResultNew:
		return "new"
	default:
		return "unknown"
	}
}

// ReceivedPacket is what the header parser tells us about a radio packet
type ReceivedPacket struct {
	Stream            protocol.StreamID
	StreamPacketIndex uint32
	Length            int
	CRCOk             bool
	Video             bool
	Dbm               int
	DataRate          int
}

// Counters are the rx and tx totals of a stream, an interface or a link,
// with the rates computed at the last refresh
type Counters struct {
	RxBytes   uint64
	RxPackets uint64
	TxBytes   uint64
	TxPackets uint64

	RxBytesPerSec   uint64
	RxPacketsPerSec uint64
	TxBytesPerSec   uint64
	TxPacketsPerSec uint64
}

func (c *Counters) addRx(length int) {
	c.RxBytes += byteCount(length)
	c.RxPackets++
}

func (c *Counters) addTx(length int) {
	c.TxBytes += byteCount(length)
	c.TxPackets++
}

// interval accumulates the traffic of the current refresh interval
type interval struct {
	rxBytes   uint64
	rxPackets uint64
	txBytes   uint64
	txPackets uint64
}

func (i *interval) addRx(length int) {
	i.rxBytes += byteCount(length)
	i.rxPackets++
}

func (i *interval) addTx(length int) {
	i.txBytes += byteCount(length)
	i.txPackets++
}

func (i *interval) commit(c *Counters, elapsed time.Duration) {
	c.RxBytesPerSec = perSecond(i.rxBytes, elapsed)
	c.RxPacketsPerSec = perSecond(i.rxPackets, elapsed)
	c.TxBytesPerSec = perSecond(i.txBytes, elapsed)
	c.TxPacketsPerSec = perSecond(i.txPackets, elapsed)
	*i = interval{}
}

func perSecond(v uint64, elapsed time.Duration) uint64 {
	if elapsed <= 0 {
		return 0
	}
	return uint64(float64(v) / elapsed.Seconds())
}

func byteCount(length int) uint64 {
	if length <= 0 {
		return 0
	}
	return uint64(length)
}

func saturate8(v uint32) uint8 {
	if v >= 0xFF {
		return 0xFF
	}
	return uint8(v)
}

// StreamStats are the counters of a logical stream, duplicates excluded
type StreamStats struct {
	Counters
	LastRxTime time.Time
	LastTxTime time.Time
}

// InterfaceStats are the counters of one physical radio interface.
// Every packet the interface received is counted, duplicates included.
type InterfaceStats struct {
	Counters
	RxPacketsBad  uint64
	RxPacketsLost uint64

	// Link is the radio link the interface is assigned to, -1 if none
	Link         int
	FrequencyKHz uint32

	LastDbm           int
	LastDbmVideo      int
	LastDbmData       int
	LastDataRate      int
	LastDataRateVideo int
	LastDataRateData  int

	// RxQuality is the percentage of good packets over the last 2 seconds
	RxQuality int
	// RxRelativeQuality ranks interfaces against each other; it has no unit
	RxRelativeQuality int

	LastRxTime time.Time
	LastTxTime time.Time

	LastStreamPacketIndex [protocol.MaxRadioStreams]uint32

	// Slice 0 is the most recent one
	HistRxPackets     [HistorySlices]uint8
	HistRxPacketsBad  [HistorySlices]uint8
	HistRxPacketsLost [HistorySlices]uint8
	// HistRxGapMs holds the largest inter packet gap of each slice, or NoGap
	HistRxGapMs [HistorySlices]uint8
}

// LinkStats are the counters of a logical radio link. A packet received on
// several interfaces of the same link is counted once.
type LinkStats struct {
	Counters
	TxPacketsUncompressed       uint64
	TxUncompressedPacketsPerSec uint64

	Streams          [protocol.MaxRadioStreams]Counters
	StreamLastRxTime [protocol.MaxRadioStreams]time.Time
	StreamLastTxTime [protocol.MaxRadioStreams]time.Time

	LastRxTime time.Time
	LastTxTime time.Time

	// RTDelayMs is the moving average of the round trip delay, or RTDelayNever
	RTDelayMs    uint32
	RTDelayMinMs uint32
	// LastTxInterface is the interface last used to transmit, -1 if none
	LastTxInterface int
}

type movingAverage struct {
	samples []uint32
}

func (m *movingAverage) reset(size int, seed uint32) {
	if cap(m.samples) < size {
		m.samples = make([]uint32, size)
	}
	m.samples = m.samples[:size]
	for i := range m.samples {
		m.samples[i] = seed
	}
}

// push drops the oldest sample and returns the new average
func (m *movingAverage) push(v uint32) uint32 {
	if len(m.samples) == 0 {
		return v
	}
	copy(m.samples, m.samples[1:])
	m.samples[len(m.samples)-1] = v
	var sum uint64
	for _, s := range m.samples {
		sum += uint64(s)
	}
	return uint32(sum / uint64(len(m.samples)))
}
