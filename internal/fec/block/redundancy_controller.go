package block

import "github.com/openfpv/radiolink/internal/fec"

const (
	DefaultDataPackets = 8
	DefaultECPackets   = 4
)

type constantRedundancyController struct {
	nDataPackets int
	nECPackets   int
}

var _ fec.RedundancyController = &constantRedundancyController{}

func NewConstantRedundancyController(nDataPackets, nECPackets int) fec.RedundancyController {
	return &constantRedundancyController{
		nDataPackets: nDataPackets,
		nECPackets:   nECPackets,
	}
}

func NewDefaultRedundancyController() fec.RedundancyController {
	return NewConstantRedundancyController(DefaultDataPackets, DefaultECPackets)
}

func (c *constantRedundancyController) GetNumberOfDataPackets() int {
	return c.nDataPackets
}

func (c *constantRedundancyController) GetNumberOfECPackets() int {
	return c.nECPackets
}
