// Package reassembly implements the receive-side datagram reassembly
// record: per-datagram fragment tracking keyed by offset, per-link
// arrival timestamps, and inter-link delta/gather helpers (spec.md
// §4.8).
package reassembly

import (
	"time"

	"github.com/QianrenLi/stream-replay/internal/packet"
)

// Record is the reassembly state for one in-flight datagram.
type Record struct {
	fragments     map[int]*packet.Fragment
	firstLinkTime time.Time
	secondLinkTime time.Time
	lastOffset    int
	haveLastOffset bool
	IsComplete    bool
}

// New creates an empty reassembly record.
func New() *Record {
	return &Record{fragments: make(map[int]*packet.Fragment)}
}

// Record ingests one received wire buffer: it decodes the fragment,
// updates the arriving link's timestamp (terminators also record the
// datagram's last offset), inserts the fragment, and recomputes
// IsComplete.
func (r *Record) Record(buf []byte, at time.Time) error {
	f, err := packet.Decode(buf)
	if err != nil {
		return err
	}

	pt, err := f.PacketType()
	if err != nil {
		return err
	}
	if pt.LinkID() == 0 {
		r.firstLinkTime = at
	} else {
		r.secondLinkTime = at
	}
	if pt.IsTerminator() {
		r.lastOffset = int(f.Offset)
		r.haveLastOffset = true
	}

	r.fragments[int(f.Offset)] = f
	r.recompute()
	return nil
}

func (r *Record) recompute() {
	if !r.haveLastOffset {
		r.IsComplete = false
		return
	}
	for off := 0; off <= r.lastOffset; off++ {
		if _, ok := r.fragments[off]; !ok {
			r.IsComplete = false
			return
		}
	}
	r.IsComplete = true
}

// Delta returns second_link_time - first_link_time, as
// second_link_time.unwrap_or(0) - first_link_time.unwrap_or(0): each
// side that hasn't received anything yet substitutes 0 on its own,
// rather than the whole result collapsing to 0 when only one side is
// absent.
func (r *Record) Delta() time.Duration {
	var firstNanos, secondNanos int64
	if !r.firstLinkTime.IsZero() {
		firstNanos = r.firstLinkTime.UnixNano()
	}
	if !r.secondLinkTime.IsZero() {
		secondNanos = r.secondLinkTime.UnixNano()
	}
	return time.Duration(secondNanos - firstNanos)
}

// Gather concatenates payloads for offsets 0..num-1 in order,
// truncated to each fragment's declared length. Missing fragments
// contribute nothing.
func (r *Record) Gather(num int) []byte {
	var out []byte
	for off := 0; off < num; off++ {
		f, ok := r.fragments[off]
		if !ok {
			continue
		}
		n := int(f.Length)
		if n > len(f.Payload) {
			n = len(f.Payload)
		}
		out = append(out, f.Payload[:n]...)
	}
	return out
}
