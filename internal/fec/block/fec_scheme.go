package block

// A BlockFECScheme is the erasure code protecting a block.
// Every packet handed to it is exactly packetLength bytes long.
type BlockFECScheme interface {
	// Encode computes the EC packets of a block. It writes len(ec) EC packets
	// into ec, each of them backed by packetLength bytes.
	Encode(packetLength int, data [][]byte, ec [][]byte) error
	// Decode recovers the data packets listed in missing.
	// data holds one entry per data packet. The missing entries have a length
	// of 0 and a capacity of at least packetLength; the recovered bytes are
	// written into their backing memory. ec holds the EC packets to use, and
	// ecIndexes their position among the EC packets of the block.
	Decode(packetLength int, data [][]byte, ec [][]byte, ecIndexes []int, missing []int) error
}
