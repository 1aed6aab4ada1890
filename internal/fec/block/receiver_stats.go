package block

import "fmt"

// ReceiverStats counts what an rx ec buffer did with its input
type ReceiverStats struct {
	Received           uint64 // packets handed to ReceivePacket
	InvalidPackets     uint64 // bad index or length
	CRCFailures        uint64 // on ingest and after reconstruction
	DuplicatePackets   uint64
	DroppedOld         uint64 // for blocks already behind the output cursor
	DroppedBeforeStart uint64 // waiting for packet 0 of a first block
	Restarts           uint64
	Gaps               uint64

	CleanBlocks         uint64
	ReconstructedBlocks uint64
	DecodeFailures      uint64

	Outputted     uint64
	Clean         uint64
	Reconstructed uint64
	Skipped       uint64
}

func (s ReceiverStats) String() string {
	return fmt.Sprintf("rx %d (invalid %d, crc %d, dup %d, old %d), blocks clean %d/reconstructed %d/failed %d, out %d (clean %d, reconstructed %d), skipped %d, restarts %d, gaps %d",
		s.Received, s.InvalidPackets, s.CRCFailures, s.DuplicatePackets, s.DroppedOld,
		s.CleanBlocks, s.ReconstructedBlocks, s.DecodeFailures,
		s.Outputted, s.Clean, s.Reconstructed, s.Skipped, s.Restarts, s.Gaps)
}
