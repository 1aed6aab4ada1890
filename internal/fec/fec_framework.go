package fec

import (
	"time"

	"github.com/openfpv/radiolink/internal/protocol"
)

// A FrameworkSender splits payloads into blocks of data packets and protects
// each block with EC packets
type FrameworkSender interface {
	// ProtectPayload queues one payload as the next data packet
	ProtectPayload(payload []byte) error
	// Flush closes the current block, padding it with empty data packets
	Flush() error
	// PopPackets returns the packets ready to be transmitted, in order
	PopPackets() []SentPacket
}

// A FrameworkReceiver reassembles blocks of radio packets and hands the data
// packets out in order
type FrameworkReceiver interface {
	ReceivePacket(blockIndex protocol.BlockIndex, packetIndex protocol.PacketIndex, data []byte, now time.Time)
	// NextPacket returns the next data packet ready for output, if any.
	// The returned Data is only valid until the next call on the receiver.
	NextPacket(pushIncompleteBlocks bool) (OutputPacket, bool)
	// HasPending reports whether packets after the output cursor are waiting
	// behind a gap
	HasPending() bool
	Reset()
}

// A BlockObserver is told what happened to each block
type BlockObserver interface {
	// OnBlockClean is called when all data packets of a block arrived
	OnBlockClean(blockIndex protocol.BlockIndex)
	// OnBlockReconstructed is called when missing data packets were decoded
	// from ecPacketsUsed EC packets
	OnBlockReconstructed(blockIndex protocol.BlockIndex, ecPacketsUsed int)
	// OnPacketsSkipped is called when data packets are given up for lost
	OnPacketsSkipped(n int)
}

// OutputPacket is a data packet handed to the consumer
type OutputPacket struct {
	Data          []byte
	BlockIndex    protocol.BlockIndex
	PacketIndex   protocol.PacketIndex
	Reconstructed bool
}

// SentPacket is a data or EC packet produced by a FrameworkSender
type SentPacket struct {
	BlockIndex  protocol.BlockIndex
	PacketIndex protocol.PacketIndex
	Data        []byte
}
