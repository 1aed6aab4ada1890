package stats

import (
	"time"

	"github.com/google/uuid"
)

// A Snapshot is a deep copy of the RadioStats, safe to hand to other goroutines
type Snapshot struct {
	SessionID uuid.UUID
	// Sequence grows by one with every snapshot of a session
	Sequence uint64
	Time     time.Time

	RefreshInterval      time.Duration
	GraphRefreshInterval time.Duration
	LastRxTime           time.Time

	CommandsRTDelayMs    uint32
	CommandsRTDelayMinMs uint32
	CommandsRTDelayMaxMs uint32

	Streams    []StreamStats
	Interfaces []InterfaceStats
	Links      []LinkStats
	Controller ControllerLinkHistory
}

// Snapshot copies the current stats
func (r *RadioStats) Snapshot(now time.Time) *Snapshot {
	r.snapshotSequence++
	s := &Snapshot{
		SessionID:            r.conf.SessionID,
		Sequence:             r.snapshotSequence,
		Time:                 now,
		RefreshInterval:      r.conf.RefreshInterval,
		GraphRefreshInterval: r.conf.GraphRefreshInterval,
		LastRxTime:           r.lastRxTime,
		CommandsRTDelayMs:    r.commandsRTDelayMs,
		CommandsRTDelayMinMs: r.commandsRTDelayMinMs,
		CommandsRTDelayMaxMs: r.commandsRTDelayMaxMs,
		Streams:              make([]StreamStats, len(r.streams)),
		Interfaces:           make([]InterfaceStats, r.conf.Interfaces),
		Links:                make([]LinkStats, len(r.links)),
		Controller:           r.controller.History(),
	}
	for i := range r.streams {
		s.Streams[i] = r.streams[i].StreamStats
	}
	for i := range s.Interfaces {
		s.Interfaces[i] = r.interfaces[i].InterfaceStats
	}
	for i := range r.links {
		s.Links[i] = r.links[i].LinkStats
	}
	return s
}
