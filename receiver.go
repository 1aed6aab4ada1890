package radiolink

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/fec/block"
	"github.com/openfpv/radiolink/internal/metrics"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/stats"
	"github.com/openfpv/radiolink/internal/utils"
	"github.com/openfpv/radiolink/internal/wire"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// An RxPacket is a radio packet as delivered by an interface
type RxPacket struct {
	Interface         int
	Stream            protocol.StreamID
	StreamPacketIndex uint32
	BlockIndex        protocol.BlockIndex
	PacketIndex       protocol.PacketIndex
	Payload           []byte
	ReceivedTime      time.Time

	// CRCOk is the radio header check done by the interface
	CRCOk    bool
	Dbm      int
	DataRate int
	Video    bool
}

// ErrReceiverClosed is returned for streams of a closed Receiver
var ErrReceiverClosed = errors.New("receiver closed")

// A Receiver accounts every arriving packet in the radio stats and hands the
// new ones to the block sorter of their stream.
// Snapshot and ECBufferStats may be called from any goroutine.
type Receiver struct {
	mutex sync.Mutex

	conf    *Config
	logger  utils.Logger
	stats   *stats.RadioStats
	sorters *incomingBlockSortersMap

	snapshot atomic.Value // *stats.Snapshot
	ecStats  atomic.Value // map[protocol.StreamID]block.ReceiverStats

	handled    atomic.Uint64
	duplicates atomic.Uint64
	rejected   atomic.Uint64
	unroutable atomic.Uint64
}

var _ metrics.Source = &Receiver{}

// NewReceiver creates a Receiver. Streams are opened on their first packet.
func NewReceiver(conf *Config, logger utils.Logger) (*Receiver, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}
	r := &Receiver{
		conf:   conf,
		logger: logger.WithPrefix("receiver"),
	}
	links := make([]int, len(conf.Interfaces))
	for i, iface := range conf.Interfaces {
		links[i] = iface.Link
	}
	r.stats = stats.NewRadioStats(stats.Config{
		RefreshInterval:         conf.Stats.RefreshInterval,
		GraphRefreshInterval:    conf.Stats.GraphRefreshInterval,
		ControllerSliceInterval: conf.Stats.ControllerSliceInterval,
		Interfaces:              len(conf.Interfaces),
		InterfaceLinks:          links,
		SessionID:               uuid.New(),
		Logger:                  logger.WithPrefix("radiostats"),
	})
	r.sorters = newIncomingBlockSortersMap(len(conf.Streams), r.openStream)
	r.ecStats.Store(map[protocol.StreamID]block.ReceiverStats{})
	return r, nil
}

func (r *Receiver) openStream(id protocol.StreamID) (blockSorterI, error) {
	conf, ok := r.conf.Stream(id)
	if !ok {
		return nil, errors.Errorf("no configuration for stream %d", id)
	}
	s, err := newStreamBlockSorter(id, conf, r.stats.Controller().ForStream(id), r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Infof("Opened stream %d (%s, %d blocks of %d+%d packets)", id, conf.FECScheme, conf.MaxBlocks, conf.DataPackets, conf.ECPackets)
	return s, nil
}

// HandlePacket accounts p and, if it is the first copy of the stream packet,
// queues it for reassembly. The payload is copied.
func (r *Receiver) HandlePacket(p *RxPacket) stats.ReceiveResult {
	if p == nil {
		r.logger.Errorf("Ignoring nil packet")
		r.rejected.Inc()
		return stats.ResultError
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	res := r.stats.UpdateOnPacketReceived(p.ReceivedTime, p.Interface, &stats.ReceivedPacket{
		Stream:            p.Stream,
		StreamPacketIndex: p.StreamPacketIndex,
		Length:            len(p.Payload),
		CRCOk:             p.CRCOk,
		Video:             p.Video,
		Dbm:               p.Dbm,
		DataRate:          p.DataRate,
	})
	switch res {
	case stats.ResultDuplicate:
		r.duplicates.Inc()
		return res
	case stats.ResultError:
		r.rejected.Inc()
		return res
	}
	r.handled.Inc()

	sorter, err := r.sorters.GetOrOpenStream(p.Stream)
	if err != nil {
		r.unroutable.Inc()
		if r.logger.Debug() {
			r.logger.Debugf("Dropping packet for stream %d: %s", p.Stream, err)
		}
		return res
	}
	sorter.Push(p)
	return res
}

// Pop returns the next packet of a stream, in order.
// The returned Data is only valid until the next call on the Receiver.
func (r *Receiver) Pop(stream protocol.StreamID, now time.Time) (fec.OutputPacket, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sorter := r.sorters.GetStream(stream)
	if sorter == nil {
		return fec.OutputPacket{}, false
	}
	return sorter.Pop(now)
}

// PopFrame is Pop, wrapped for IPC. The frame owns its data.
func (r *Receiver) PopFrame(stream protocol.StreamID, now time.Time) (*wire.PayloadFrame, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	sorter := r.sorters.GetStream(stream)
	if sorter == nil {
		return nil, false
	}
	p, ok := sorter.Pop(now)
	if !ok {
		return nil, false
	}
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return &wire.PayloadFrame{
		Stream:        stream,
		BlockIndex:    p.BlockIndex,
		PacketIndex:   p.PacketIndex,
		Reconstructed: p.Reconstructed,
		Data:          data,
	}, true
}

// Tick runs the periodic stats update. When the stats were refreshed, a new
// snapshot is published and true is returned.
func (r *Receiver) Tick(now time.Time) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.stats.PeriodicUpdate(now) {
		return false
	}
	r.publish(now)
	return true
}

// Publish publishes a snapshot right away
func (r *Receiver) Publish(now time.Time) *stats.Snapshot {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.publish(now)
}

func (r *Receiver) publish(now time.Time) *stats.Snapshot {
	s := r.stats.Snapshot(now)
	r.snapshot.Store(s)
	ec := make(map[protocol.StreamID]block.ReceiverStats)
	r.sorters.ForEach(func(id protocol.StreamID, sorter blockSorterI) {
		ec[id] = sorter.Stats()
	})
	r.ecStats.Store(ec)
	if r.logger.Debug() {
		r.logger.Debugf("Published snapshot %d: %s", s.Sequence, r.stats)
	}
	return s
}

// Snapshot returns the last published snapshot, nil before the first one
func (r *Receiver) Snapshot() *stats.Snapshot {
	s, _ := r.snapshot.Load().(*stats.Snapshot)
	return s
}

// ECBufferStats returns the rx ec buffer counters as of the last snapshot
func (r *Receiver) ECBufferStats() map[protocol.StreamID]block.ReceiverStats {
	ec, _ := r.ecStats.Load().(map[protocol.StreamID]block.ReceiverStats)
	return ec
}

// ReceiverCounters counts what HandlePacket did
type ReceiverCounters struct {
	Handled    uint64
	Duplicates uint64
	Rejected   uint64
	Unroutable uint64
}

func (r *Receiver) Counters() ReceiverCounters {
	return ReceiverCounters{
		Handled:    r.handled.Load(),
		Duplicates: r.duplicates.Load(),
		Rejected:   r.rejected.Load(),
		Unroutable: r.unroutable.Load(),
	}
}

// UpdateOnPacketSent accounts a packet sent on an interface
func (r *Receiver) UpdateOnPacketSent(now time.Time, iface int, stream protocol.StreamID, length int) {
	r.mutex.Lock()
	r.stats.UpdateOnPacketSent(now, iface, stream, length)
	r.mutex.Unlock()
}

// SetRadioLinkRTDelay records a round trip measured on a radio link
func (r *Receiver) SetRadioLinkRTDelay(link int, delay time.Duration) {
	r.mutex.Lock()
	r.stats.SetRadioLinkRTDelay(link, delay)
	r.mutex.Unlock()
}

// SetCommandsRTDelay records a round trip of the commands stream
func (r *Receiver) SetCommandsRTDelay(delay time.Duration) {
	r.mutex.Lock()
	r.stats.SetCommandsRTDelay(delay)
	r.mutex.Unlock()
}

// SetCardCurrentFrequency records the frequency an interface is tuned to
func (r *Receiver) SetCardCurrentFrequency(iface int, freqKHz uint32) {
	r.mutex.Lock()
	r.stats.SetCardCurrentFrequency(iface, freqKHz)
	r.mutex.Unlock()
}

// SessionID identifies the snapshots of this Receiver
func (r *Receiver) SessionID() uuid.UUID {
	return r.stats.SessionID()
}

// Close closes all streams. Pending packets are dropped.
func (r *Receiver) Close() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sorters.CloseWithError(ErrReceiverClosed)
}
