// Package throttle implements the sliding-window sender-rate throttle
// that paces the aggregate stream (spec.md §4.2).
package throttle

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/QianrenLi/stream-replay/internal/packet"
)

// sample is one (timestamp, size) pair in the sliding window.
type sample struct {
	at   time.Time
	size int
}

// ConsumeResult is the outcome of a try_consume attempt.
type ConsumeResult int

const (
	// Consumed means the front fragment was admitted and sent.
	Consumed ConsumeResult = iota
	// NotYet means the estimated rate would exceed the threshold; the
	// caller should sleep and retry.
	NotYet
	// RetryLater means send_fn returned false (e.g. EWOULDBLOCK); the
	// fragment stays staged for the next drain iteration.
	RetryLater
	// Empty means the staging buffer had nothing to offer.
	Empty
)

// SendFunc attempts to send a fragment and reports whether it was
// actually transmitted.
type SendFunc func(f *packet.Fragment) bool

// Throttle paces admission of staged fragments against a sliding-window
// rate estimate.
type Throttle struct {
	mu         sync.Mutex
	window     []sample
	windowSize int
	stage      []*packet.Fragment
	stageCap   int

	thresholdMbps atomic.Float64
	lastRateMbps  atomic.Float64
}

// New creates a throttle with the given sliding-window length and
// threshold in Mbit/s. A threshold of 0 disables throttling.
func New(windowSize int, thresholdMbps float64) *Throttle {
	t := &Throttle{
		windowSize: windowSize,
		stageCap:   100 * windowSize,
	}
	t.thresholdMbps.Store(thresholdMbps)
	return t
}

// SetThreshold updates the throttle threshold in Mbit/s.
func (t *Throttle) SetThreshold(mbps float64) { t.thresholdMbps.Store(mbps) }

// Threshold returns the current throttle threshold in Mbit/s.
func (t *Throttle) Threshold() float64 { return t.thresholdMbps.Load() }

// LastRate returns the most recently estimated send rate in Mbit/s.
func (t *Throttle) LastRate() float64 { return t.lastRateMbps.Load() }

// Prepare pushes fragments into the staging buffer and returns how many
// of the oldest staged fragments were dropped to stay within stageCap.
func (t *Throttle) Prepare(fragments []*packet.Fragment) (dropped int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, f := range fragments {
		t.stage = append(t.stage, f)
		if len(t.stage) > t.stageCap {
			t.stage = t.stage[1:]
			dropped++
		}
	}
	t.lastRateMbps.Store(t.estimateRateLocked(0))
	return dropped
}

// TryConsume attempts to admit the fragment at the head of the staging
// buffer. It peeks at its length; if admitting it would push the
// estimated rate at or above the threshold, it sleeps 100µs and returns
// NotYet. Otherwise it invokes sendFn: on true it records (now, length)
// in the window and pops the fragment (Consumed); on false the fragment
// stays staged (RetryLater).
func (t *Throttle) TryConsume(sendFn SendFunc) ConsumeResult {
	t.mu.Lock()
	if len(t.stage) == 0 {
		t.mu.Unlock()
		return Empty
	}
	front := t.stage[0]

	threshold := t.thresholdMbps.Load()
	if threshold > 0 {
		rate := t.estimateRateLocked(int(front.Length))
		if rate >= threshold {
			t.mu.Unlock()
			time.Sleep(100 * time.Microsecond)
			return NotYet
		}
	}
	t.mu.Unlock()

	if !sendFn(front) {
		return RetryLater
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.window = append(t.window, sample{at: now, size: int(front.Length)})
	if len(t.window) > t.windowSize {
		t.window = t.window[1:]
	}
	t.stage = t.stage[1:]
	return Consumed
}

// estimateRateLocked computes 8 * (sum window sizes + candidate) /
// (now - window.front.timestamp), in Mbit/s. Must be called with mu
// held. Returns 0 when the window is empty (no elapsed interval yet).
func (t *Throttle) estimateRateLocked(candidate int) float64 {
	if len(t.window) == 0 {
		return 0
	}
	sum := candidate
	for _, s := range t.window {
		sum += s.size
	}
	elapsed := time.Since(t.window[0].at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return 8 * float64(sum) / 1_000_000 / elapsed
}

// StageLen returns the current staging buffer length, for statistics
// and logging.
func (t *Throttle) StageLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stage)
}

// Reset clears the window and the staging buffer.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = nil
	t.stage = nil
}
