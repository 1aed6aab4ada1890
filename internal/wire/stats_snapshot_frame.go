package wire

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/stats"
	"github.com/pkg/errors"
)

// A StatsSnapshotFrame carries a stats snapshot to the processes reading it
type StatsSnapshotFrame struct {
	Snapshot *stats.Snapshot
}

func parseStatsSnapshotFrame(body []byte) (*StatsSnapshotFrame, error) {
	r := newBodyReader(body)
	if version := r.varint(); r.err == nil && version != protocol.StatsSnapshotVersion {
		return nil, errors.Errorf("unsupported stats snapshot version %d", version)
	}
	s := &stats.Snapshot{}
	id, err := uuid.FromBytes(r.bytes())
	if r.err == nil && err != nil {
		return nil, errors.Wrap(err, "decoding stats snapshot session")
	}
	s.SessionID = id
	s.Sequence = r.varint()
	s.Time = r.time()
	s.RefreshInterval = time.Duration(r.varint())
	s.GraphRefreshInterval = time.Duration(r.varint())
	s.LastRxTime = r.time()
	s.CommandsRTDelayMs = uint32(r.varint())
	s.CommandsRTDelayMinMs = uint32(r.varint())
	s.CommandsRTDelayMaxMs = uint32(r.varint())

	n, err := r.count(protocol.MaxRadioStreams)
	if err != nil {
		return nil, err
	}
	s.Streams = make([]stats.StreamStats, n)
	for i := range s.Streams {
		st := &s.Streams[i]
		r.counters(&st.Counters)
		st.LastRxTime = r.time()
		st.LastTxTime = r.time()
	}

	if n, err = r.count(protocol.MaxRadioInterfaces); err != nil {
		return nil, err
	}
	s.Interfaces = make([]stats.InterfaceStats, n)
	for i := range s.Interfaces {
		r.interfaceStats(&s.Interfaces[i])
	}

	if n, err = r.count(protocol.MaxRadioLinks); err != nil {
		return nil, err
	}
	s.Links = make([]stats.LinkStats, n)
	for i := range s.Links {
		if err := r.linkStats(&s.Links[i]); err != nil {
			return nil, err
		}
	}

	h := &s.Controller
	for i := range h.InterfaceRxQuality {
		r.history(h.InterfaceRxQuality[i][:])
	}
	for i := range h.BlocksClean {
		r.history(h.BlocksClean[i][:])
		r.history(h.BlocksReconstructed[i][:])
		r.history(h.MaxECPacketsUsed[i][:])
		r.history(h.PacketsSkipped[i][:])
	}

	if r.err != nil {
		return nil, errors.Wrap(r.err, "decoding stats snapshot frame")
	}
	return &StatsSnapshotFrame{Snapshot: s}, nil
}

func (r *bodyReader) count(max int) (int, error) {
	n := r.varint()
	if r.err != nil {
		return 0, errors.Wrap(r.err, "decoding stats snapshot frame")
	}
	if n > uint64(max) {
		return 0, errors.Errorf("stats snapshot with %d entries, at most %d supported", n, max)
	}
	return int(n), nil
}

func (r *bodyReader) counters(c *stats.Counters) {
	c.RxBytes = r.varint()
	c.RxPackets = r.varint()
	c.TxBytes = r.varint()
	c.TxPackets = r.varint()
	c.RxBytesPerSec = r.varint()
	c.RxPacketsPerSec = r.varint()
	c.TxBytesPerSec = r.varint()
	c.TxPacketsPerSec = r.varint()
}

// history reads a fixed size history. A shorter one is an error.
func (r *bodyReader) history(dst []byte) {
	b := r.bytes()
	if r.err == nil && len(b) != len(dst) {
		r.err = errors.Errorf("history of %d slices, expected %d", len(b), len(dst))
	}
	copy(dst, b)
}

func (r *bodyReader) interfaceStats(in *stats.InterfaceStats) {
	r.counters(&in.Counters)
	in.RxPacketsBad = r.varint()
	in.RxPacketsLost = r.varint()
	in.Link = int(r.signed())
	in.FrequencyKHz = uint32(r.varint())
	in.LastDbm = int(r.signed())
	in.LastDbmVideo = int(r.signed())
	in.LastDbmData = int(r.signed())
	in.LastDataRate = int(r.signed())
	in.LastDataRateVideo = int(r.signed())
	in.LastDataRateData = int(r.signed())
	in.RxQuality = int(r.signed())
	in.RxRelativeQuality = int(r.signed())
	in.LastRxTime = r.time()
	in.LastTxTime = r.time()
	for k := range in.LastStreamPacketIndex {
		in.LastStreamPacketIndex[k] = uint32(r.varint())
	}
	r.history(in.HistRxPackets[:])
	r.history(in.HistRxPacketsBad[:])
	r.history(in.HistRxPacketsLost[:])
	r.history(in.HistRxGapMs[:])
}

func (r *bodyReader) linkStats(l *stats.LinkStats) error {
	r.counters(&l.Counters)
	l.TxPacketsUncompressed = r.varint()
	l.TxUncompressedPacketsPerSec = r.varint()
	n, err := r.count(protocol.MaxRadioStreams)
	if err != nil {
		return err
	}
	for k := 0; k < n; k++ {
		r.counters(&l.Streams[k])
		l.StreamLastRxTime[k] = r.time()
		l.StreamLastTxTime[k] = r.time()
	}
	l.LastRxTime = r.time()
	l.LastTxTime = r.time()
	l.RTDelayMs = uint32(r.varint())
	l.RTDelayMinMs = uint32(r.varint())
	l.LastTxInterface = int(r.signed())
	return nil
}

func (f *StatsSnapshotFrame) body() ([]byte, error) {
	s := f.Snapshot
	if s == nil {
		return nil, errors.New("stats snapshot frame without snapshot")
	}
	if len(s.Streams) > protocol.MaxRadioStreams || len(s.Interfaces) > protocol.MaxRadioInterfaces || len(s.Links) > protocol.MaxRadioLinks {
		return nil, errors.Errorf("stats snapshot too big: %d streams, %d interfaces, %d links", len(s.Streams), len(s.Interfaces), len(s.Links))
	}
	w := newBodyWriter()
	w.varint(protocol.StatsSnapshotVersion)
	w.bytes(s.SessionID[:])
	w.varint(s.Sequence)
	w.time(s.Time)
	w.varint(uint64(s.RefreshInterval))
	w.varint(uint64(s.GraphRefreshInterval))
	w.time(s.LastRxTime)
	w.varint(uint64(s.CommandsRTDelayMs))
	w.varint(uint64(s.CommandsRTDelayMinMs))
	w.varint(uint64(s.CommandsRTDelayMaxMs))

	w.varint(uint64(len(s.Streams)))
	for i := range s.Streams {
		st := &s.Streams[i]
		w.counters(&st.Counters)
		w.time(st.LastRxTime)
		w.time(st.LastTxTime)
	}

	w.varint(uint64(len(s.Interfaces)))
	for i := range s.Interfaces {
		w.interfaceStats(&s.Interfaces[i])
	}

	w.varint(uint64(len(s.Links)))
	for i := range s.Links {
		w.linkStats(&s.Links[i])
	}

	h := &s.Controller
	for i := range h.InterfaceRxQuality {
		w.bytes(h.InterfaceRxQuality[i][:])
	}
	for i := range h.BlocksClean {
		w.bytes(h.BlocksClean[i][:])
		w.bytes(h.BlocksReconstructed[i][:])
		w.bytes(h.MaxECPacketsUsed[i][:])
		w.bytes(h.PacketsSkipped[i][:])
	}
	return w.Bytes(), nil
}

func (w *bodyWriter) counters(c *stats.Counters) {
	w.varint(c.RxBytes)
	w.varint(c.RxPackets)
	w.varint(c.TxBytes)
	w.varint(c.TxPackets)
	w.varint(c.RxBytesPerSec)
	w.varint(c.RxPacketsPerSec)
	w.varint(c.TxBytesPerSec)
	w.varint(c.TxPacketsPerSec)
}

func (w *bodyWriter) interfaceStats(in *stats.InterfaceStats) {
	w.counters(&in.Counters)
	w.varint(in.RxPacketsBad)
	w.varint(in.RxPacketsLost)
	w.signed(int64(in.Link))
	w.varint(uint64(in.FrequencyKHz))
	w.signed(int64(in.LastDbm))
	w.signed(int64(in.LastDbmVideo))
	w.signed(int64(in.LastDbmData))
	w.signed(int64(in.LastDataRate))
	w.signed(int64(in.LastDataRateVideo))
	w.signed(int64(in.LastDataRateData))
	w.signed(int64(in.RxQuality))
	w.signed(int64(in.RxRelativeQuality))
	w.time(in.LastRxTime)
	w.time(in.LastTxTime)
	for _, seq := range in.LastStreamPacketIndex {
		w.varint(uint64(seq))
	}
	w.bytes(in.HistRxPackets[:])
	w.bytes(in.HistRxPacketsBad[:])
	w.bytes(in.HistRxPacketsLost[:])
	w.bytes(in.HistRxGapMs[:])
}

func (w *bodyWriter) linkStats(l *stats.LinkStats) {
	w.counters(&l.Counters)
	w.varint(l.TxPacketsUncompressed)
	w.varint(l.TxUncompressedPacketsPerSec)
	w.varint(uint64(len(l.Streams)))
	for k := range l.Streams {
		w.counters(&l.Streams[k])
		w.time(l.StreamLastRxTime[k])
		w.time(l.StreamLastTxTime[k])
	}
	w.time(l.LastRxTime)
	w.time(l.LastTxTime)
	w.varint(uint64(l.RTDelayMs))
	w.varint(uint64(l.RTDelayMinMs))
	w.signed(int64(l.LastTxInterface))
}

func (f *StatsSnapshotFrame) Write(b *bytes.Buffer) error {
	body, err := f.body()
	if err != nil {
		return err
	}
	writeFrame(b, protocol.StatsSnapshotFrameType, body)
	return nil
}

// Length of a written frame
func (f *StatsSnapshotFrame) Length() protocol.ByteCount {
	body, _ := f.body()
	return frameLength(body)
}
