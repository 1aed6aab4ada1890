package fec_utils

import (
	"github.com/openfpv/radiolink/internal/crypto"
	"github.com/openfpv/radiolink/internal/fec"
	"github.com/openfpv/radiolink/internal/fec/block"
	"github.com/openfpv/radiolink/internal/fec/block/fec_schemes"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/pkg/errors"
)

// CreateFrameworkSenderFromFECSchemeID returns nil for FECDisabled
func CreateFrameworkSenderFromFECSchemeID(id protocol.FECSchemeID, controller fec.RedundancyController, checksum crypto.PacketChecksum, packetLength int) (*block.BlockFrameworkSender, error) {
	switch {
	case IsBlockFECScheme(id):
		fecScheme, err := GetBlockFECScheme(id)
		if err != nil {
			return nil, err
		}
		if controller == nil {
			controller = block.NewDefaultRedundancyController()
		}
		if id == protocol.XORFECScheme && controller.GetNumberOfECPackets() != 1 {
			return nil, errors.Errorf("the XOR scheme needs exactly 1 EC packet per block, got %d", controller.GetNumberOfECPackets())
		}
		sender, err := block.NewBlockFrameworkSender(fecScheme, controller, checksum, packetLength)
		return sender, errors.Wrap(err, "creating block sender")
	case id == protocol.FECDisabled:
		return nil, nil
	default:
		return nil, errors.Errorf("invalid sender FECSchemeID: %d", id)
	}
}

// CreateFrameworkReceiverFromFECSchemeID returns nil for FECDisabled
func CreateFrameworkReceiverFromFECSchemeID(id protocol.FECSchemeID, conf *block.ReceiverConfig) (*block.BlockFrameworkReceiver, error) {
	switch {
	case IsBlockFECScheme(id):
		fecScheme, err := GetBlockFECScheme(id)
		if err != nil {
			return nil, err
		}
		if id == protocol.XORFECScheme && conf.ECPackets != 1 {
			return nil, errors.Errorf("the XOR scheme needs exactly 1 EC packet per block, got %d", conf.ECPackets)
		}
		return block.NewBlockFrameworkReceiver(fecScheme, conf), nil
	case id == protocol.FECDisabled:
		return nil, nil
	default:
		return nil, errors.Errorf("invalid receiver FECSchemeID: %d", id)
	}
}

func IsBlockFECScheme(id protocol.FECSchemeID) bool {
	switch id {
	case protocol.XORFECScheme, protocol.ReedSolomonFECScheme:
		return true
	default:
		return false
	}
}

func GetBlockFECScheme(id protocol.FECSchemeID) (block.BlockFECScheme, error) {
	switch id {
	case protocol.XORFECScheme:
		return &fec_schemes.XORFECScheme{}, nil
	case protocol.ReedSolomonFECScheme:
		s, err := fec_schemes.NewReedSolomonFECScheme()
		return s, errors.Wrap(err, "creating Reed-Solomon scheme")
	default:
		return nil, errors.Errorf("invalid block FEC Scheme ID: %d", id)
	}
}
