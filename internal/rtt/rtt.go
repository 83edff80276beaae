// Package rtt implements the RTT recorder: it receives pong datagrams
// on a dedicated UDP port and maintains a sequence-indexed ring of
// outstanding round-trip measurements, from which it derives average
// RTT and an outage ratio (spec.md §4.7).
package rtt

import (
	"encoding/binary"
	"math"
	"net"
	"sync"
	"time"

	"github.com/QianrenLi/stream-replay/internal/log"
)

// PortOffset is added to a stream's data port to derive its pong port.
const PortOffset = 1024

// ReadTimeout bounds each blocking recv so the recorder loop can check
// for shutdown between reads.
const ReadTimeout = 200 * time.Millisecond

// minDatagramLen is the shortest pong datagram the wire format allows:
// 4 bytes of seq plus the delta field ending at byte offset 27.
const minDatagramLen = 27

// entry is one ring slot: an outstanding or completed round-trip
// measurement for a single sequence number.
type entry struct {
	valid          bool
	seq            uint32
	arrivalTime    time.Time
	lastOutageTime time.Time
	pongTime       time.Time
	hasPong        bool
	delta          float64
}

// Snapshot is a statistics sample over the recorder's live entries.
type Snapshot struct {
	RTTAvg     float64
	OutageRate float64
}

// Recorder owns one ring buffer and the UDP socket receiving pongs for
// one stream.
type Recorder struct {
	mu        sync.Mutex
	ring      []entry
	targetRTT float64
	conn      *net.UDPConn
	logger    log.Logger
}

// New creates a recorder with the given ring length and target RTT
// (seconds), bound to a UDP socket on the tx interface's address at
// the given port.
func New(txAddr string, port int, ringLength int, targetRTT float64) (*Recorder, error) {
	laddr := &net.UDPAddr{IP: net.ParseIP(txAddr), Port: port}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		ring:      make([]entry, ringLength),
		targetRTT: targetRTT,
		conn:      conn,
		logger:    log.GetLogger(),
	}, nil
}

// Close releases the underlying socket.
func (r *Recorder) Close() error { return r.conn.Close() }

// RecordSent registers that seq was emitted at sentAt, opening its
// ring slot so a later pong can compute RTT against it.
func (r *Recorder) RecordSent(seq uint32, sentAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := int(seq) % len(r.ring)
	r.ring[idx] = entry{valid: true, seq: seq, arrivalTime: sentAt, lastOutageTime: sentAt}
}

// Run reads pong datagrams until stop is closed, updating the ring on
// each one. Read timeouts are not errors; the loop just continues.
func (r *Recorder) Run(stop <-chan struct{}) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-stop:
			return
		default:
		}
		r.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			continue
		}
		if n < minDatagramLen {
			continue
		}
		r.onPong(buf[:n], time.Now())
	}
}

func (r *Recorder) onPong(datagram []byte, now time.Time) {
	seq := binary.LittleEndian.Uint32(datagram[0:4])
	delta := math.Float64frombits(binary.LittleEndian.Uint64(datagram[19:27]))

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int(seq) % len(r.ring)
	slot := &r.ring[idx]
	if !slot.valid || slot.seq != seq {
		*slot = entry{valid: true, seq: seq, arrivalTime: now, lastOutageTime: now}
	}
	slot.pongTime = now
	slot.hasPong = true
	slot.delta = delta
}

// Statistic computes rtt_avg over completed entries and outage_rate
// over all live entries, then clears the completed slots (the ones
// that contributed to rtt_avg) so they don't double-count next time.
func (r *Recorder) Statistic() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var rttSum float64
	var rttCount int
	var overageSum float64

	for i := range r.ring {
		slot := &r.ring[i]
		if !slot.valid {
			continue
		}
		if slot.hasPong {
			rttSum += slot.pongTime.Sub(slot.arrivalTime).Seconds()
			rttCount++
			overage := slot.pongTime.Sub(slot.arrivalTime.Add(durationFromSeconds(r.targetRTT)))
			if overage > 0 {
				overageSum += overage.Seconds()
			}
			*slot = entry{}
		} else {
			overage := now.Sub(slot.lastOutageTime)
			if overage > 0 {
				overageSum += overage.Seconds()
			}
			slot.lastOutageTime = now
		}
	}

	var rttAvg float64
	if rttCount > 0 {
		rttAvg = rttSum / float64(rttCount)
	}
	var outageRate float64
	if r.targetRTT > 0 {
		outageRate = overageSum / r.targetRTT
	}
	return Snapshot{RTTAvg: rttAvg, OutageRate: outageRate}
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
