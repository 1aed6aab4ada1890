package stats

import (
	"time"

	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/protocol"
)

const (
	// ControllerHistorySlices is the depth of the controller link history
	ControllerHistorySlices = 5
	// DefaultControllerSliceInterval is the width of one controller history slice
	DefaultControllerSliceInterval = 80 * time.Millisecond
	// NoQuality marks a slice in which an interface neither received nor lost anything
	NoQuality = 0xFF
)

// ControllerLinkHistory is the short history reported back to the vehicle,
// so it can adapt its EC rate. Slice 0 is the most recent one.
type ControllerLinkHistory struct {
	InterfaceRxQuality  [protocol.MaxRadioInterfaces][ControllerHistorySlices]uint8
	BlocksClean         [protocol.MaxRadioStreams][ControllerHistorySlices]uint8
	BlocksReconstructed [protocol.MaxRadioStreams][ControllerHistorySlices]uint8
	MaxECPacketsUsed    [protocol.MaxRadioStreams][ControllerHistorySlices]uint8
	PacketsSkipped      [protocol.MaxRadioStreams][ControllerHistorySlices]uint8
}

// ControllerLinkStats slices interface quality and block outcomes per stream
type ControllerLinkStats struct {
	sliceInterval time.Duration
	lastUpdate    time.Time
	interfaces    int

	history ControllerLinkHistory

	tmpRecv [protocol.MaxRadioInterfaces]uint32
	tmpBad  [protocol.MaxRadioInterfaces]uint32
	tmpLost [protocol.MaxRadioInterfaces]uint32

	tmpClean         [protocol.MaxRadioStreams]uint32
	tmpReconstructed [protocol.MaxRadioStreams]uint32
	tmpMaxEC         [protocol.MaxRadioStreams]uint32
	tmpSkipped       [protocol.MaxRadioStreams]uint32
}

// Reset clears the history
func (c *ControllerLinkStats) Reset(interfaces int, sliceInterval time.Duration) {
	if sliceInterval <= 0 {
		sliceInterval = DefaultControllerSliceInterval
	}
	*c = ControllerLinkStats{
		sliceInterval: sliceInterval,
		interfaces:    interfaces,
	}
	for i := range c.history.InterfaceRxQuality {
		for k := range c.history.InterfaceRxQuality[i] {
			c.history.InterfaceRxQuality[i][k] = NoQuality
		}
	}
}

// History returns a copy of the history
func (c *ControllerLinkStats) History() ControllerLinkHistory {
	return c.history
}

// ForStream returns the observer to hand to the rx ec buffer of a stream
func (c *ControllerLinkStats) ForStream(stream protocol.StreamID) fec.BlockObserver {
	if int(stream) >= protocol.MaxRadioStreams {
		return nil
	}
	return &streamBlockObserver{stats: c, stream: stream}
}

func (c *ControllerLinkStats) onReceived(iface int, bad bool) {
	c.tmpRecv[iface]++
	if bad {
		c.tmpBad[iface]++
	}
}

func (c *ControllerLinkStats) onLost(iface int, lost uint32) {
	c.tmpLost[iface] += lost
}

// PeriodicUpdate closes the current slice once the slice interval elapsed.
// It returns true if it did.
func (c *ControllerLinkStats) PeriodicUpdate(now time.Time) bool {
	if !c.lastUpdate.IsZero() && !now.Before(c.lastUpdate) && now.Sub(c.lastUpdate) < c.sliceInterval {
		return false
	}
	c.lastUpdate = now

	for i := 0; i < c.interfaces; i++ {
		q := &c.history.InterfaceRxQuality[i]
		copy(q[1:], q[:ControllerHistorySlices-1])
		switch {
		case c.tmpRecv[i] == 0 && c.tmpLost[i] == 0:
			q[0] = NoQuality
		case c.tmpRecv[i] == 0:
			q[0] = 0
		default:
			q[0] = uint8(100 - (100*uint64(c.tmpBad[i]+c.tmpLost[i]))/uint64(c.tmpRecv[i]+c.tmpLost[i]))
		}
		c.tmpRecv[i], c.tmpBad[i], c.tmpLost[i] = 0, 0, 0
	}

	for s := 0; s < protocol.MaxRadioStreams; s++ {
		shiftIn(&c.history.BlocksClean[s], c.tmpClean[s])
		shiftIn(&c.history.BlocksReconstructed[s], c.tmpReconstructed[s])
		shiftIn(&c.history.MaxECPacketsUsed[s], c.tmpMaxEC[s])
		shiftIn(&c.history.PacketsSkipped[s], c.tmpSkipped[s])
		c.tmpClean[s], c.tmpReconstructed[s], c.tmpMaxEC[s], c.tmpSkipped[s] = 0, 0, 0, 0
	}
	return true
}

func shiftIn(h *[ControllerHistorySlices]uint8, v uint32) {
	copy(h[1:], h[:ControllerHistorySlices-1])
	h[0] = saturate8(v)
}

type streamBlockObserver struct {
	stats  *ControllerLinkStats
	stream protocol.StreamID
}

var _ fec.BlockObserver = &streamBlockObserver{}

func (o *streamBlockObserver) OnBlockClean(protocol.BlockIndex) {
	o.stats.tmpClean[o.stream]++
}

func (o *streamBlockObserver) OnBlockReconstructed(_ protocol.BlockIndex, ecPacketsUsed int) {
	o.stats.tmpReconstructed[o.stream]++
	if uint32(ecPacketsUsed) > o.stats.tmpMaxEC[o.stream] {
		o.stats.tmpMaxEC[o.stream] = uint32(ecPacketsUsed)
	}
}

func (o *streamBlockObserver) OnPacketsSkipped(n int) {
	o.stats.tmpSkipped[o.stream] += uint32(n)
}
