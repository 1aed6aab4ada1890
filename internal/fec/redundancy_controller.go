package fec

// The redundancy controller decides how many data and EC packets make up a block.

type RedundancyController interface {
	// returns the number of data packets per block
	GetNumberOfDataPackets() int
	// returns the number of EC packets generated for each block
	GetNumberOfECPackets() int
}
