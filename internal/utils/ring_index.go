package utils

// A RingIndex is a slot position in a ring of fixed size.
// All arithmetic wraps around the ring.
type RingIndex struct {
	value int
	size  int
}

// NewRingIndex returns the slot x in a ring of the given size
func NewRingIndex(x, size int) RingIndex {
	if size < 1 {
		size = 1
	}
	return RingIndex{size: size}.Add(x)
}

// Val returns the slot
func (r RingIndex) Val() int { return r.value }

// Size returns the number of slots in the ring
func (r RingIndex) Size() int { return r.size }

// Equals compares two indexes of the same ring
func (r RingIndex) Equals(b RingIndex) bool { return r.value == b.value }

// Inc advances by one slot
func (r RingIndex) Inc() RingIndex { return r.Add(1) }

// Dec moves back by one slot
func (r RingIndex) Dec() RingIndex { return r.Add(-1) }

// Add advances by n slots. n may be negative.
func (r RingIndex) Add(n int) RingIndex {
	v := (r.value + n) % r.size
	if v < 0 {
		v += r.size
	}
	r.value = v
	return r
}

// Sub moves back by n slots
func (r RingIndex) Sub(n int) RingIndex { return r.Add(-n) }

// Distance is the number of forward steps needed to reach b from r
func (r RingIndex) Distance(b RingIndex) int {
	d := b.value - r.value
	if d < 0 {
		d += r.size
	}
	return d
}
