package stats

import "time"

const (
	dedupWindowSize = 200
	dedupMaxAge     = time.Second
)

// dedupWindow remembers the stream packet indexes accepted during the last
// second, to recognize copies of a packet received on several interfaces
type dedupWindow struct {
	seqs  [dedupWindowSize]uint32
	times [dedupWindowSize]time.Time
	next  int
	count int

	max    uint32
	hasMax bool
}

func (w *dedupWindow) reset() {
	*w = dedupWindow{}
}

// accept returns true and records seq if it was not seen recently
func (w *dedupWindow) accept(seq uint32, now time.Time) bool {
	if w.seen(seq, now) {
		return false
	}
	w.seqs[w.next] = seq
	w.times[w.next] = now
	w.next = (w.next + 1) % dedupWindowSize
	if w.count < dedupWindowSize {
		w.count++
	}
	if !w.hasMax || seq > w.max {
		w.max = seq
		w.hasMax = true
	}
	return true
}

func (w *dedupWindow) seen(seq uint32, now time.Time) bool {
	if !w.hasMax || seq > w.max {
		return false
	}
	if seq == w.max {
		return true
	}
	// most recent first, stop at the first entry older than dedupMaxAge
	i := w.next
	for n := w.count; n > 0; n-- {
		i--
		if i < 0 {
			i += dedupWindowSize
		}
		if now.Sub(w.times[i]) > dedupMaxAge {
			return false
		}
		if w.seqs[i] == seq {
			return true
		}
	}
	return false
}
