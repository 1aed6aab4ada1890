package radiolink

import (
	"strconv"
	"time"

	"github.com/gammazero/deque"
	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/fec/block"
	fec_utils "github.com/openfpv/radiolink/internal/fec/utils"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/utils"
	"github.com/pkg/errors"
)

type blockSorterI interface {
	Push(p *RxPacket)
	Pop(now time.Time) (fec.OutputPacket, bool)
	Stats() block.ReceiverStats
	closeForShutdown(error)
}

// A streamBlockSorter orders the packets of one stream. Protected streams go
// through an rx ec buffer, unprotected ones through a bounded FIFO.
// It is not safe for concurrent use.
type streamBlockSorter struct {
	streamID protocol.StreamID
	logger   utils.Logger

	receiver     *block.BlockFrameworkReceiver
	maxBlockWait time.Duration
	stalledSince time.Time

	passthrough    deque.Deque[fec.OutputPacket]
	maxPassthrough int
	stats          block.ReceiverStats

	closed bool
}

var _ blockSorterI = &streamBlockSorter{}

func newStreamBlockSorter(id protocol.StreamID, conf *StreamConfig, observer fec.BlockObserver, logger utils.Logger) (*streamBlockSorter, error) {
	scheme, ok := protocol.ParseFECSchemeName(conf.FECScheme)
	if !ok {
		return nil, errors.Errorf("stream %d: unknown FEC scheme %q", id, conf.FECScheme)
	}
	var checksum crypto.PacketChecksum
	if conf.EnableCRC {
		checksum = crypto.NewCRC32Checksum()
	}
	logger = logger.WithPrefix(streamName(id))
	receiver, err := fec_utils.CreateFrameworkReceiverFromFECSchemeID(scheme, &block.ReceiverConfig{
		MaxBlocks:    conf.MaxBlocks,
		DataPackets:  conf.DataPackets,
		ECPackets:    conf.ECPackets,
		PacketLength: conf.PacketLength,
		Checksum:     checksum,
		Observer:     observer,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	s := &streamBlockSorter{
		streamID:       id,
		logger:         logger,
		receiver:       receiver,
		maxBlockWait:   conf.BlockWait(),
		maxPassthrough: conf.MaxBlocks * conf.DataPackets,
	}
	if s.maxPassthrough < 1 {
		s.maxPassthrough = 1
	}
	if receiver != nil && receiver.Disabled() {
		logger.Errorf("rx ec buffer disabled, stream %d will not output anything", id)
	}
	return s, nil
}

func (s *streamBlockSorter) Push(p *RxPacket) {
	if s.closed {
		return
	}
	if s.receiver != nil {
		s.receiver.ReceivePacket(p.BlockIndex, p.PacketIndex, p.Payload, p.ReceivedTime)
		return
	}
	s.stats.Received++
	if s.passthrough.Len() >= s.maxPassthrough {
		s.passthrough.PopFront()
		s.stats.Skipped++
	}
	data := make([]byte, len(p.Payload))
	copy(data, p.Payload)
	s.passthrough.PushBack(fec.OutputPacket{
		Data:        data,
		BlockIndex:  p.BlockIndex,
		PacketIndex: p.PacketIndex,
	})
}

// Pop returns the next packet of the stream. A gap in front of waiting packets
// is given up once it has stalled the stream for maxBlockWait.
func (s *streamBlockSorter) Pop(now time.Time) (fec.OutputPacket, bool) {
	if s.closed {
		return fec.OutputPacket{}, false
	}
	if s.receiver == nil {
		if s.passthrough.Len() == 0 {
			return fec.OutputPacket{}, false
		}
		s.stats.Outputted++
		s.stats.Clean++
		return s.passthrough.PopFront(), true
	}
	if p, ok := s.receiver.NextPacket(false); ok {
		s.stalledSince = time.Time{}
		return p, true
	}
	if !s.receiver.HasPending() {
		s.stalledSince = time.Time{}
		return fec.OutputPacket{}, false
	}
	if s.stalledSince.IsZero() {
		s.stalledSince = now
	}
	if now.Sub(s.stalledSince) < s.maxBlockWait {
		return fec.OutputPacket{}, false
	}
	if s.logger.Debug() {
		s.logger.Debugf("Stream stalled for %s, skipping ahead", now.Sub(s.stalledSince))
	}
	s.stalledSince = time.Time{}
	return s.receiver.NextPacket(true)
}

func (s *streamBlockSorter) Stats() block.ReceiverStats {
	if s.receiver != nil {
		return s.receiver.Stats()
	}
	return s.stats
}

func (s *streamBlockSorter) closeForShutdown(err error) {
	if s.closed {
		return
	}
	s.closed = true
	if s.receiver != nil {
		s.receiver.Reset()
	}
	s.passthrough.Clear()
	s.logger.Infof("Closing stream %d: %v", s.streamID, err)
}

func streamName(id protocol.StreamID) string {
	switch id {
	case protocol.StreamIDTelemetry:
		return "telemetry"
	case protocol.StreamIDCommands:
		return "commands"
	case protocol.StreamIDData:
		return "data"
	case protocol.StreamIDVideo:
		return "video"
	case protocol.StreamIDAudio:
		return "audio"
	}
	return "stream" + strconv.Itoa(int(id))
}
