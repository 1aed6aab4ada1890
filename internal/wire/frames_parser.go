package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/openfpv/radiolink/internal/protocol"
	"github.com/pkg/errors"
)

// ErrUnknownFrameType is returned for frames of an unknown type
var ErrUnknownFrameType = errors.New("unknown frame type")

// A Frame is an IPC message
type Frame interface {
	Write(b *bytes.Buffer) error
	Length() protocol.ByteCount
}

var (
	_ Frame = &PayloadFrame{}
	_ Frame = &StatsSnapshotFrame{}
)

// A frame is its type, the varint length of its body and the body
func writeFrame(b *bytes.Buffer, frameType byte, body []byte) {
	b.WriteByte(frameType)
	var l [binary.MaxVarintLen64]byte
	b.Write(l[:binary.PutUvarint(l[:], uint64(len(body)))])
	b.Write(body)
}

func frameLength(body []byte) protocol.ByteCount {
	return protocol.ByteCount(1 + len(proto.EncodeVarint(uint64(len(body)))) + len(body))
}

// ParseNextFrame parses the next frame. It returns io.EOF if r is empty.
func ParseNextFrame(r *bytes.Reader) (Frame, error) {
	frameType, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(noEOF(err), "reading frame length")
	}
	if length > protocol.MaxFrameBodySize {
		return nil, errors.Errorf("frame too big: %d > %d", length, protocol.MaxFrameBodySize)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(noEOF(err), "reading frame body")
	}

	switch frameType {
	case protocol.PayloadFrameType:
		return parsePayloadFrame(body)
	case protocol.StatsSnapshotFrameType:
		return parseStatsSnapshotFrame(body)
	default:
		return nil, errors.Wrapf(ErrUnknownFrameType, "type %#x", frameType)
	}
}

// a frame cut short is not the end of the stream
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
