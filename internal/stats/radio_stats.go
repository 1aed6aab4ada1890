package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/openfpv/radiolink/internal/utils"
)

// Config of the RadioStats
type Config struct {
	RefreshInterval         time.Duration
	GraphRefreshInterval    time.Duration
	ControllerSliceInterval time.Duration
	// Interfaces is the number of radio interfaces, at most protocol.MaxRadioInterfaces
	Interfaces int
	// InterfaceLinks optionally assigns each interface to a radio link
	InterfaceLinks []int
	// SessionID identifies the snapshots of this instance. A random one is used if unset.
	SessionID uuid.UUID
	Logger    utils.Logger
}

func (c *Config) populate() {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = protocol.DefaultStatsRefreshInterval
	}
	if c.GraphRefreshInterval <= 0 {
		c.GraphRefreshInterval = protocol.DefaultGraphRefreshInterval
	}
	if c.ControllerSliceInterval <= 0 {
		c.ControllerSliceInterval = DefaultControllerSliceInterval
	}
	if c.Interfaces < 0 {
		c.Interfaces = 0
	}
	if c.Interfaces > protocol.MaxRadioInterfaces {
		c.Interfaces = protocol.MaxRadioInterfaces
	}
	if c.SessionID == uuid.Nil {
		c.SessionID = uuid.New()
	}
	if c.Logger == nil {
		c.Logger = utils.DefaultLogger.WithPrefix("radiostats")
	}
}

type streamState struct {
	StreamStats
	tmp   interval
	dedup dedupWindow
}

type interfaceState struct {
	InterfaceStats
	tmp        interval
	streamSeen [protocol.MaxRadioStreams]bool

	histTmpRecv uint32
	histTmpBad  uint32
	histTmpLost uint32
}

type linkState struct {
	LinkStats
	tmp             interval
	tmpUncompressed uint64
	streamTmp       [protocol.MaxRadioStreams]interval
	dedup           [protocol.MaxRadioStreams]dedupWindow
	rtDelays        movingAverage
}

// RadioStats accounts every received and sent radio packet per stream,
// interface and link. It is not safe for concurrent use.
type RadioStats struct {
	conf   Config
	logger utils.Logger

	streams    [protocol.MaxRadioStreams]streamState
	interfaces [protocol.MaxRadioInterfaces]interfaceState
	links      [protocol.MaxRadioLinks]linkState
	controller ControllerLinkStats

	lastRxTime       time.Time
	lastRefresh      time.Time
	lastGraphRefresh time.Time

	commandsRTDelays     movingAverage
	commandsRTDelayMs    uint32
	commandsRTDelayMinMs uint32
	commandsRTDelayMaxMs uint32

	snapshotSequence uint64
}

// NewRadioStats creates RadioStats
func NewRadioStats(conf Config) *RadioStats {
	r := &RadioStats{}
	r.Reset(conf)
	return r
}

// Reset zeroes all counters and history and applies conf
func (r *RadioStats) Reset(conf Config) {
	conf.populate()
	*r = RadioStats{
		conf:   conf,
		logger: conf.Logger,
	}

	r.commandsRTDelays.reset(commandsRTWindow, rtDelaySeedMs)
	r.commandsRTDelayMs = RTDelayNever
	r.commandsRTDelayMinMs = RTDelayNever
	r.commandsRTDelayMaxMs = RTDelayNever

	for i := range r.interfaces {
		in := &r.interfaces[i]
		in.Link = -1
		in.LastDbm = NoDbm
		in.LastDbmVideo = NoDbm
		in.LastDbmData = NoDbm
		for k := range in.HistRxGapMs {
			in.HistRxGapMs[k] = NoGap
		}
	}
	for i, link := range conf.InterfaceLinks {
		if i < conf.Interfaces && link >= 0 && link < protocol.MaxRadioLinks {
			r.interfaces[i].Link = link
		}
	}

	for i := range r.links {
		l := &r.links[i]
		l.rtDelays.reset(linkRTWindow, rtDelaySeedMs)
		l.RTDelayMs = RTDelayNever
		l.RTDelayMinMs = RTDelayNever
		l.LastTxInterface = -1
	}

	r.controller.Reset(conf.Interfaces, conf.ControllerSliceInterval)

	r.logger.Debugf("Reset radio stats: %d interfaces, %s/%s refresh intervals", conf.Interfaces, conf.RefreshInterval, conf.GraphRefreshInterval)
}

// InterfacesCount is the number of radio interfaces accounted
func (r *RadioStats) InterfacesCount() int {
	return r.conf.Interfaces
}

// SessionID identifies this instance in snapshots
func (r *RadioStats) SessionID() uuid.UUID {
	return r.conf.SessionID
}

// Controller returns the controller link stats fed by this instance
func (r *RadioStats) Controller() *ControllerLinkStats {
	return &r.controller
}

func (r *RadioStats) validInterface(iface int) bool {
	return iface >= 0 && iface < r.conf.Interfaces
}

// SetInterfaceRadioLink assigns an interface to a radio link. Use -1 to unassign it.
func (r *RadioStats) SetInterfaceRadioLink(iface, link int) {
	if !r.validInterface(iface) {
		r.logger.Errorf("Tried to assign invalid radio interface %d to radio link %d", iface, link)
		return
	}
	if link < -1 || link >= protocol.MaxRadioLinks {
		r.logger.Errorf("Tried to assign radio interface %d to invalid radio link %d", iface, link)
		return
	}
	r.interfaces[iface].Link = link
}

// UpdateOnPacketReceived accounts a packet received on an interface.
// It returns ResultNew the first time a stream packet is seen on any
// interface, and ResultDuplicate for its copies.
func (r *RadioStats) UpdateOnPacketReceived(now time.Time, iface int, p *ReceivedPacket) ReceiveResult {
	if !r.validInterface(iface) {
		r.logger.Errorf("Tried to update radio stats on invalid radio interface %d", iface)
		return ResultError
	}
	if p == nil {
		r.logger.Errorf("Tried to update radio stats on radio interface %d without a packet", iface)
		return ResultError
	}
	if int(p.Stream) >= protocol.MaxRadioStreams {
		r.logger.Errorf("Received packet on radio interface %d for invalid stream %d", iface, p.Stream)
		return ResultError
	}
	stream := p.Stream
	seq := p.StreamPacketIndex
	in := &r.interfaces[iface]
	link := in.Link
	if link < 0 || link >= protocol.MaxRadioLinks {
		r.logger.Errorf("Received packet on radio interface %d that is not assigned to any radio link", iface)
		return ResultError
	}

	r.lastRxTime = now

	in.LastDbm = p.Dbm
	in.LastDataRate = p.DataRate
	if p.Video {
		in.LastDbmVideo = p.Dbm
		in.LastDataRateVideo = p.DataRate
	} else {
		in.LastDbmData = p.Dbm
		in.LastDataRateData = p.DataRate
	}

	gap := uint8(0)
	if !in.LastRxTime.IsZero() {
		ms := now.Sub(in.LastRxTime).Milliseconds()
		switch {
		case ms > maxGapMs:
			gap = maxGapMs
		case ms > 0:
			gap = uint8(ms)
		}
	}
	if in.HistRxGapMs[0] == NoGap || gap > in.HistRxGapMs[0] {
		in.HistRxGapMs[0] = gap
	}
	in.LastRxTime = now
	r.streams[stream].LastRxTime = now

	l := &r.links[link]
	l.LastRxTime = now
	l.StreamLastRxTime[stream] = now

	in.addRx(p.Length)
	in.tmp.addRx(p.Length)
	in.histTmpRecv++

	if p.Length <= 0 || !p.CRCOk {
		in.RxPacketsBad++
		in.histTmpBad++
		r.controller.onReceived(iface, true)
		if r.logger.Debug() {
			r.logger.Debugf("Bad packet on radio interface %d, stream %d, index %d (%d bytes)", iface, stream, seq, p.Length)
		}
		return ResultError
	}
	r.controller.onReceived(iface, false)

	if in.streamSeen[stream] && seq > in.LastStreamPacketIndex[stream] {
		lost := seq - in.LastStreamPacketIndex[stream] - 1
		in.RxPacketsLost += uint64(lost)
		in.histTmpLost += lost
		r.controller.onLost(iface, lost)
	}
	in.streamSeen[stream] = true
	in.LastStreamPacketIndex[stream] = seq

	result := ResultDuplicate
	st := &r.streams[stream]
	if st.dedup.accept(seq, now) {
		result = ResultNew
		st.addRx(p.Length)
		st.tmp.addRx(p.Length)
	}

	// a packet that is a duplicate across links is still new on the link that received it
	if l.dedup[stream].accept(seq, now) {
		l.addRx(p.Length)
		l.tmp.addRx(p.Length)
		l.Streams[stream].addRx(p.Length)
		l.streamTmp[stream].addRx(p.Length)
	}
	return result
}

// UpdateOnPacketSent accounts a packet transmitted on an interface
func (r *RadioStats) UpdateOnPacketSent(now time.Time, iface int, stream protocol.StreamID, length int) {
	if !r.validInterface(iface) {
		r.logger.Errorf("Tried to update tx stats on invalid radio interface %d", iface)
		return
	}
	if int(stream) >= protocol.MaxRadioStreams {
		r.logger.Errorf("Tried to update tx stats for invalid stream %d", stream)
		return
	}
	in := &r.interfaces[iface]
	in.addTx(length)
	in.tmp.addTx(length)
	in.LastTxTime = now

	st := &r.streams[stream]
	st.addTx(length)
	st.tmp.addTx(length)
	st.LastTxTime = now

	if in.Link < 0 || in.Link >= protocol.MaxRadioLinks {
		return
	}
	l := &r.links[in.Link]
	l.addTx(length)
	l.tmp.addTx(length)
	l.Streams[stream].addTx(length)
	l.streamTmp[stream].addTx(length)
	l.LastTxTime = now
	l.StreamLastTxTime[stream] = now
}

// UpdateOnUncompressedPacketSent accounts packets sent on a link without
// being chained into a compressed radio packet
func (r *RadioStats) UpdateOnUncompressedPacketSent(link, count int) {
	if link < 0 || link >= protocol.MaxRadioLinks {
		r.logger.Errorf("Tried to update tx stats on invalid radio link %d", link)
		return
	}
	if count <= 0 {
		return
	}
	r.links[link].TxPacketsUncompressed += uint64(count)
	r.links[link].tmpUncompressed += uint64(count)
}

// SetTxCardForRadioLink records the interface last used to transmit on a link
func (r *RadioStats) SetTxCardForRadioLink(link, iface int) {
	if link < 0 || link >= protocol.MaxRadioLinks {
		r.logger.Errorf("Tried to set the tx interface of invalid radio link %d", link)
		return
	}
	r.links[link].LastTxInterface = iface
}

// SetCardCurrentFrequency records the frequency an interface is tuned to
func (r *RadioStats) SetCardCurrentFrequency(iface int, freqKHz uint32) {
	if !r.validInterface(iface) {
		r.logger.Errorf("Tried to set the frequency of invalid radio interface %d", iface)
		return
	}
	r.interfaces[iface].FrequencyKHz = freqKHz
}

// SetRadioLinkRTDelay adds a round trip delay sample to a link
func (r *RadioStats) SetRadioLinkRTDelay(link int, delay time.Duration) {
	if link < 0 || link >= protocol.MaxRadioLinks {
		r.logger.Errorf("Tried to set the round trip delay of invalid radio link %d", link)
		return
	}
	l := &r.links[link]
	l.RTDelayMs = l.rtDelays.push(durationMs(delay))
	if l.RTDelayMs < l.RTDelayMinMs {
		l.RTDelayMinMs = l.RTDelayMs
	}
}

// SetCommandsRTDelay adds a round trip delay sample of the commands stream
func (r *RadioStats) SetCommandsRTDelay(delay time.Duration) {
	ms := durationMs(delay)
	r.commandsRTDelayMs = r.commandsRTDelays.push(ms)
	if r.commandsRTDelayMs < r.commandsRTDelayMinMs {
		r.commandsRTDelayMinMs = r.commandsRTDelayMs
	}
	if r.commandsRTDelayMaxMs == RTDelayNever || ms > r.commandsRTDelayMaxMs {
		r.commandsRTDelayMaxMs = ms
	}
}

// CommandsRTDelay returns the average, minimum and maximum round trip delay
// of the commands stream, in milliseconds
func (r *RadioStats) CommandsRTDelay() (avg, min, max uint32) {
	return r.commandsRTDelayMs, r.commandsRTDelayMinMs, r.commandsRTDelayMaxMs
}

func durationMs(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms >= RTDelayNever {
		return RTDelayNever - 1
	}
	return uint32(ms)
}

// PeriodicUpdate recomputes the rates and qualities every refresh interval
// and commits a history slice every graph refresh interval. Both also run if
// the clock went backwards. It returns true if either ran.
func (r *RadioStats) PeriodicUpdate(now time.Time) bool {
	updated := false
	if elapsed, ok := due(now, r.lastRefresh, r.conf.RefreshInterval); ok {
		r.lastRefresh = now
		r.updateRates(elapsed)
		r.updateQuality()
		updated = true
	}
	if _, ok := due(now, r.lastGraphRefresh, r.conf.GraphRefreshInterval); ok {
		r.lastGraphRefresh = now
		r.commitHistorySlice()
		updated = true
	}
	r.controller.PeriodicUpdate(now)
	return updated
}

// due returns the time elapsed since last, or interval if that is not meaningful
func due(now, last time.Time, interval time.Duration) (time.Duration, bool) {
	if last.IsZero() || now.Before(last) {
		return interval, true
	}
	elapsed := now.Sub(last)
	return elapsed, elapsed >= interval
}

func (r *RadioStats) updateRates(elapsed time.Duration) {
	for i := range r.streams {
		s := &r.streams[i]
		s.tmp.commit(&s.Counters, elapsed)
	}
	for i := 0; i < r.conf.Interfaces; i++ {
		in := &r.interfaces[i]
		in.tmp.commit(&in.Counters, elapsed)
	}
	for i := range r.links {
		l := &r.links[i]
		l.tmp.commit(&l.Counters, elapsed)
		l.TxUncompressedPacketsPerSec = perSecond(l.tmpUncompressed, elapsed)
		l.tmpUncompressed = 0
		for k := range l.streamTmp {
			l.streamTmp[k].commit(&l.Streams[k], elapsed)
		}
	}
}

// qualitySlices is the number of history slices covering the quality window
func (r *RadioStats) qualitySlices() int {
	n := int(qualityWindow / r.conf.GraphRefreshInterval)
	if n < 3 {
		n = 3
	}
	if n >= HistorySlices {
		n = HistorySlices - 1
	}
	return n
}

func (r *RadioStats) updateQuality() {
	slices := r.qualitySlices()
	for i := 0; i < r.conf.Interfaces; i++ {
		in := &r.interfaces[i]
		recv := uint64(in.histTmpRecv)
		bad := uint64(in.histTmpBad)
		lost := uint64(in.histTmpLost)
		for k := 0; k < slices; k++ {
			recv += uint64(in.HistRxPackets[k])
			bad += uint64(in.HistRxPacketsBad[k])
			lost += uint64(in.HistRxPacketsLost[k])
		}
		if bad > recv {
			bad = recv
		}

		if recv == 0 {
			in.RxQuality = 0
		} else {
			in.RxQuality = 100 - int(100*(lost+bad)/(recv+lost))
		}

		rel := in.RxQuality
		if in.LastDbm > 0 {
			rel -= in.LastDbm
		} else {
			rel += in.LastDbm
		}
		if in.LastDbm < -100 {
			rel -= 10000
		}
		rel -= int(lost)
		rel += int(recv - bad)
		in.RxRelativeQuality = rel
	}
}

func (r *RadioStats) commitHistorySlice() {
	for i := 0; i < r.conf.Interfaces; i++ {
		in := &r.interfaces[i]
		copy(in.HistRxPackets[1:], in.HistRxPackets[:HistorySlices-1])
		copy(in.HistRxPacketsBad[1:], in.HistRxPacketsBad[:HistorySlices-1])
		copy(in.HistRxPacketsLost[1:], in.HistRxPacketsLost[:HistorySlices-1])
		copy(in.HistRxGapMs[1:], in.HistRxGapMs[:HistorySlices-1])

		in.HistRxPackets[0] = saturate8(in.histTmpRecv)
		in.HistRxPacketsBad[0] = saturate8(in.histTmpBad)
		in.HistRxPacketsLost[0] = saturate8(in.histTmpLost)
		in.HistRxGapMs[0] = NoGap
		in.histTmpRecv, in.histTmpBad, in.histTmpLost = 0, 0, 0
	}
}

// Stream returns a copy of the stats of a stream
func (r *RadioStats) Stream(stream protocol.StreamID) StreamStats {
	if int(stream) >= protocol.MaxRadioStreams {
		return StreamStats{}
	}
	return r.streams[stream].StreamStats
}

// Interface returns a copy of the stats of a radio interface
func (r *RadioStats) Interface(iface int) InterfaceStats {
	if iface < 0 || iface >= protocol.MaxRadioInterfaces {
		return InterfaceStats{Link: -1}
	}
	return r.interfaces[iface].InterfaceStats
}

// Link returns a copy of the stats of a radio link
func (r *RadioStats) Link(link int) LinkStats {
	if link < 0 || link >= protocol.MaxRadioLinks {
		return LinkStats{LastTxInterface: -1}
	}
	return r.links[link].LinkStats
}

// LastRxTime is the time the last packet was received on any interface
func (r *RadioStats) LastRxTime() time.Time {
	return r.lastRxTime
}

func (r *RadioStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rx %d pkt/s %d B/s", r.totalStreamRate(true), r.totalStreamRate(false))
	for i := 0; i < r.conf.Interfaces; i++ {
		in := &r.interfaces[i]
		fmt.Fprintf(&b, "; iface %d (link %d): %d pkt/s, q %d%%, bad %d, lost %d, %d dBm",
			i, in.Link, in.RxPacketsPerSec, in.RxQuality, in.RxPacketsBad, in.RxPacketsLost, in.LastDbm)
	}
	for i := range r.links {
		l := &r.links[i]
		if l.RxPackets == 0 && l.TxPackets == 0 {
			continue
		}
		fmt.Fprintf(&b, "; link %d: rx %d pkt/s, tx %d pkt/s", i, l.RxPacketsPerSec, l.TxPacketsPerSec)
		if l.RTDelayMs != RTDelayNever {
			fmt.Fprintf(&b, ", rt %d ms (min %d)", l.RTDelayMs, l.RTDelayMinMs)
		}
	}
	return b.String()
}

func (r *RadioStats) totalStreamRate(packets bool) uint64 {
	var total uint64
	for i := range r.streams {
		if packets {
			total += r.streams[i].RxPacketsPerSec
		} else {
			total += r.streams[i].RxBytesPerSec
		}
	}
	return total
}
