package wire

import (
	"time"

	"github.com/golang/protobuf/proto"
)

// bodyWriter encodes frame bodies with the protobuf varint encodings
type bodyWriter struct {
	b *proto.Buffer
}

func newBodyWriter() *bodyWriter {
	return &bodyWriter{b: proto.NewBuffer(nil)}
}

func (w *bodyWriter) varint(v uint64) {
	_ = w.b.EncodeVarint(v)
}

func (w *bodyWriter) signed(v int64) {
	_ = w.b.EncodeZigzag64(uint64(v))
}

func (w *bodyWriter) bool(v bool) {
	if v {
		w.varint(1)
	} else {
		w.varint(0)
	}
}

func (w *bodyWriter) bytes(v []byte) {
	_ = w.b.EncodeRawBytes(v)
}

// time encodes the zero time as 0
func (w *bodyWriter) time(t time.Time) {
	if t.IsZero() {
		w.signed(0)
		return
	}
	w.signed(t.UnixNano())
}

func (w *bodyWriter) Bytes() []byte {
	return w.b.Bytes()
}

// bodyReader decodes frame bodies. The first error sticks, every later read returns zero values.
type bodyReader struct {
	b   *proto.Buffer
	err error
}

func newBodyReader(body []byte) *bodyReader {
	return &bodyReader{b: proto.NewBuffer(body)}
}

func (r *bodyReader) varint() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.b.DecodeVarint()
	r.err = err
	return v
}

func (r *bodyReader) signed() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.b.DecodeZigzag64()
	r.err = err
	return int64(v)
}

func (r *bodyReader) bool() bool {
	return r.varint() != 0
}

func (r *bodyReader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	v, err := r.b.DecodeRawBytes(true)
	r.err = err
	return v
}

func (r *bodyReader) time() time.Time {
	ns := r.signed()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
