package protocol

// A FECSchemeID selects the erasure code protecting a stream.
type FECSchemeID = byte

const (
	XORFECScheme         FECSchemeID = 0
	ReedSolomonFECScheme FECSchemeID = 1
	FECDisabled          FECSchemeID = 0xFF
)

const (
	// MaxDataPacketsInBlock is the largest number of data packets a block can carry
	MaxDataPacketsInBlock = 32
	// MaxECPacketsInBlock is the largest number of EC packets a block can carry
	MaxECPacketsInBlock = 32
	// MaxBlocksInWindow bounds the number of blocks an rx ec buffer keeps
	MaxBlocksInWindow = 1000
	// MaxPacketPayload is the largest radio payload carried in one packet
	MaxPacketPayload = 1250
	// MaxArenaSize caps the memory a single rx ec buffer may allocate
	MaxArenaSize = 64 << 20
)

// StreamRestartThreshold is how far a block index may fall behind the newest
// block before the sender is assumed to have restarted
const StreamRestartThreshold = 50

// ParseFECSchemeName maps a config name to a scheme ID
func ParseFECSchemeName(name string) (FECSchemeID, bool) {
	switch name {
	case "reed-solomon", "rs", "":
		return ReedSolomonFECScheme, true
	case "xor":
		return XORFECScheme, true
	case "none", "disabled":
		return FECDisabled, true
	}
	return 0, false
}
