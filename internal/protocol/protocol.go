package protocol

import "time"

// A BlockIndex numbers the FEC blocks of a stream. It grows monotonically and may wrap.
type BlockIndex uint32

// A PacketIndex is the position of a packet inside its block.
// Data packets come first, EC packets follow.
type PacketIndex uint8

// A StreamID identifies a logical stream multiplexed over the radio links
type StreamID uint8

// A ByteCount in bytes
type ByteCount uint64

const (
	// MaxRadioInterfaces is the number of physical radio interfaces tracked
	MaxRadioInterfaces = 8
	// MaxRadioLinks is the number of logical radio links tracked
	MaxRadioLinks = 4
	// MaxRadioStreams is the number of logical streams tracked
	MaxRadioStreams = 8
)

const (
	StreamIDTelemetry StreamID = 0
	StreamIDCommands  StreamID = 1
	StreamIDData      StreamID = 2
	StreamIDVideo     StreamID = 3
	StreamIDAudio     StreamID = 4
)

const (
	// DefaultStatsRefreshInterval is how often rates and qualities are recomputed
	DefaultStatsRefreshInterval = 350 * time.Millisecond
	// DefaultGraphRefreshInterval is the width of one history slice
	DefaultGraphRefreshInterval = 100 * time.Millisecond
	// DefaultMaxBlockWait is how long a stream waits for a missing packet before skipping it
	DefaultMaxBlockWait = 50 * time.Millisecond
)
