package protocol

// Frame types of the IPC messages
const (
	PayloadFrameType       byte = 0x01
	StatsSnapshotFrameType byte = 0x02
)

// StatsSnapshotVersion is the version of the stats snapshot encoding
const StatsSnapshotVersion = 1

// MaxFrameBodySize bounds the body of a frame read from the IPC transport
const MaxFrameBodySize = 1 << 20
