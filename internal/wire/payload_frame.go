package wire

import (
	"bytes"

	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/pkg/errors"
)

// A PayloadFrame carries a data packet handed out by an rx ec buffer
type PayloadFrame struct {
	Stream        protocol.StreamID
	BlockIndex    protocol.BlockIndex
	PacketIndex   protocol.PacketIndex
	Reconstructed bool
	Data          []byte
}

func parsePayloadFrame(body []byte) (*PayloadFrame, error) {
	r := newBodyReader(body)
	stream := r.varint()
	blockIndex := r.varint()
	packetIndex := r.varint()
	reconstructed := r.bool()
	data := r.bytes()
	if r.err != nil {
		return nil, errors.Wrap(r.err, "decoding payload frame")
	}
	if stream >= protocol.MaxRadioStreams {
		return nil, errors.Errorf("payload frame for invalid stream %d", stream)
	}
	if blockIndex > 0xFFFFFFFF || packetIndex >= protocol.MaxDataPacketsInBlock {
		return nil, errors.Errorf("payload frame with invalid index %d/%d", blockIndex, packetIndex)
	}
	if len(data) > protocol.MaxPacketPayload {
		return nil, errors.Errorf("decoded payload frame too big: %d > %d", len(data), protocol.MaxPacketPayload)
	}
	return &PayloadFrame{
		Stream:        protocol.StreamID(stream),
		BlockIndex:    protocol.BlockIndex(blockIndex),
		PacketIndex:   protocol.PacketIndex(packetIndex),
		Reconstructed: reconstructed,
		Data:          data,
	}, nil
}

func (f *PayloadFrame) body() ([]byte, error) {
	if len(f.Data) > protocol.MaxPacketPayload {
		return nil, errors.Errorf("encoding payload frame too big: %d > %d", len(f.Data), protocol.MaxPacketPayload)
	}
	w := newBodyWriter()
	w.varint(uint64(f.Stream))
	w.varint(uint64(f.BlockIndex))
	w.varint(uint64(f.PacketIndex))
	w.bool(f.Reconstructed)
	w.bytes(f.Data)
	return w.Bytes(), nil
}

func (f *PayloadFrame) Write(b *bytes.Buffer) error {
	body, err := f.body()
	if err != nil {
		return err
	}
	writeFrame(b, protocol.PayloadFrameType, body)
	return nil
}

// Length of a written frame
func (f *PayloadFrame) Length() protocol.ByteCount {
	body, _ := f.body()
	return frameLength(body)
}
