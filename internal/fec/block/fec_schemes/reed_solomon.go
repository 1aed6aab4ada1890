package fec_schemes

import (
	"errors"

	"github.com/klauspost/reedsolomon"
	. "github.com/openfpv/radiolink/internal/fec/block"
)

var _ BlockFECScheme = &ReedSolomonFECScheme{}

var ReedSolomonNotEnoughECPackets = errors.New("ReedSolomon FEC Scheme: not enough EC packets to recover the block")
var ReedSolomonInvalidNumberOfPackets = errors.New("ReedSolomon FEC Scheme: impossible to build FEC Scheme with a number of packets equal to zero")

// NewReedSolomonFECScheme returns a Reed-Solomon scheme. Encoders are cached
// per block geometry. The scheme is not safe for concurrent use.
func NewReedSolomonFECScheme() (*ReedSolomonFECScheme, error) {
	return &ReedSolomonFECScheme{
		schemes:        make(map[[2]int]reedsolomon.Encoder),
		performCaching: true,
	}, nil
}

type ReedSolomonFECScheme struct {
	schemes           map[[2]int]reedsolomon.Encoder
	currentRedundancy [2]int
	performCaching    bool
	shards            [][]byte
}

func (f *ReedSolomonFECScheme) Encode(packetLength int, data [][]byte, ec [][]byte) error {
	if len(data) == 0 || len(ec) == 0 {
		return ReedSolomonInvalidNumberOfPackets
	}
	enc, err := f.getEncoder(len(data), len(ec))
	if err != nil {
		return err
	}
	shards := f.getShards(len(data) + len(ec))
	for i := range data {
		shards[i] = data[i][:packetLength]
	}
	for i := range ec {
		shards[len(data)+i] = ec[i][:packetLength]
	}
	return enc.Encode(shards)
}

// Decode builds the shards as if the block had max(ecIndexes)+1 EC packets.
// The parity rows of the Vandermonde based matrix do not depend on the total
// number of EC packets, so this matches what the sender encoded.
func (f *ReedSolomonFECScheme) Decode(packetLength int, data [][]byte, ec [][]byte, ecIndexes []int, missing []int) error {
	if len(missing) == 0 {
		return nil
	}
	if len(ec) < len(missing) || len(ec) != len(ecIndexes) {
		return ReedSolomonNotEnoughECPackets
	}
	nEC := 0
	for _, idx := range ecIndexes {
		if idx+1 > nEC {
			nEC = idx + 1
		}
	}
	enc, err := f.getEncoder(len(data), nEC)
	if err != nil {
		return err
	}
	shards := f.getShards(len(data) + nEC)
	for i := range data {
		if len(data[i]) == 0 {
			shards[i] = data[i][:0]
		} else {
			shards[i] = data[i][:packetLength]
		}
	}
	for i, idx := range ecIndexes {
		shards[len(data)+idx] = ec[i][:packetLength]
	}
	if err := enc.ReconstructData(shards); err != nil {
		return err
	}
	for _, i := range missing {
		copy(data[i][:packetLength], shards[i])
	}
	return nil
}

// getShards returns a zeroed slice of n shards, reusing its backing array
func (f *ReedSolomonFECScheme) getShards(n int) [][]byte {
	if cap(f.shards) < n {
		f.shards = make([][]byte, n)
	}
	shards := f.shards[:n]
	for i := range shards {
		shards[i] = nil
	}
	return shards
}

func (f *ReedSolomonFECScheme) getEncoder(nDataPackets, nECPackets int) (reedsolomon.Encoder, error) {
	if nDataPackets == 0 || nECPackets == 0 {
		return nil, ReedSolomonInvalidNumberOfPackets
	}
	if !f.performCaching {
		return reedsolomon.New(nDataPackets, nECPackets)
	}
	f.currentRedundancy[0] = nDataPackets
	f.currentRedundancy[1] = nECPackets
	if _, ok := f.schemes[f.currentRedundancy]; !ok {
		enc, err := reedsolomon.New(nDataPackets, nECPackets)
		if err != nil {
			return nil, err
		}
		f.schemes[f.currentRedundancy] = enc
	}
	return f.schemes[f.currentRedundancy], nil
}
