package toylink

import (
	"github.com/openfpv/radiolink"
	"github.com/openfpv/radiolink/internal/stats"
)

// Result of a Run
type Result struct {
	Link Stats
	// New, Duplicate and Error count the HandlePacket results
	New       int
	Duplicate int
	Error     int

	Output        int
	Reconstructed int
	// Mismatched counts output packets that differ from what was sent
	Mismatched int
}

// Run sends payloads over the link into r, pulling the stream and ticking the
// stats after every payload. At the end the simulated time is advanced until
// the stream stops releasing packets.
func Run(l *Link, r *radiolink.Receiver, payloads [][]byte) (Result, error) {
	var res Result
	stream := l.conf.Stream.ID
	handle := func(p *radiolink.RxPacket) {
		switch r.HandlePacket(p) {
		case stats.ResultNew:
			res.New++
		case stats.ResultDuplicate:
			res.Duplicate++
		default:
			res.Error++
		}
	}
	pop := func() int {
		n := 0
		for {
			f, ok := r.PopFrame(stream, l.Now())
			if !ok {
				break
			}
			n++
			if f.Reconstructed {
				res.Reconstructed++
			}
			if !l.Verify(f) {
				res.Mismatched++
			}
		}
		res.Output += n
		r.Tick(l.Now())
		return n
	}

	for _, p := range payloads {
		if err := l.Send(p); err != nil {
			return res, err
		}
		l.Deliver(handle)
		pop()
	}
	if err := l.Flush(); err != nil {
		return res, err
	}
	l.Drain(handle)
	pop()

	// every gap is waited for once before it is skipped
	wait := l.conf.Stream.BlockWait()
	for i := 0; i <= l.conf.Stream.MaxBlocks*l.conf.Stream.DataPackets; i++ {
		l.Advance(wait)
		pop()
		l.Advance(wait)
		if pop() == 0 {
			break
		}
	}
	r.Publish(l.Now())
	res.Link = l.Stats()
	return res, nil
}
