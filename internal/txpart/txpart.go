// Package txpart implements the transmit part controller: it wraps the
// selected scheduling policy, the live PolicyParameter, and a
// two-element blocked_signals mask (one slot per managed link), and
// turns a fragment plus the latest MAC snapshot into a packet type
// decision (spec.md §4.5).
package txpart

import (
	"time"

	"github.com/tevino/abool"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/macmon"
	"github.com/QianrenLi/stream-replay/internal/packet"
	"github.com/QianrenLi/stream-replay/internal/policy"
)

// Controller wraps a policy.Kind, its live parameters, and the
// blocked-signal mask for a stream's two managed links.
type Controller struct {
	kind    policy.Kind
	params  config.PolicyParameter
	blocked [2]*abool.AtomicBool

	devices []string // interface names, in link order, for MAC snapshot lookup
}

// New creates a controller for the given policy kind, starting
// parameters, and the managed device names in link order.
func New(kind policy.Kind, params config.PolicyParameter, devices []string) *Controller {
	return &Controller{
		kind:    kind,
		params:  params,
		blocked: [2]*abool.AtomicBool{abool.New(), abool.New()},
		devices: devices,
	}
}

// SetParameters updates the live policy parameters (e.g. from a
// control-plane PolicyParameters command).
func (c *Controller) SetParameters(params config.PolicyParameter) {
	c.params = params
}

// Parameters returns the current policy parameters.
func (c *Controller) Parameters() config.PolicyParameter { return c.params }

// Blocked reports whether the given link (0 or 1) is currently
// flagged as blocked.
func (c *Controller) Blocked(link int) bool { return c.blocked[link].IsSet() }

// MarkBlocked sets the blocked flag for a link after a send returns
// EWOULDBLOCK or any other send error (spec.md §4.6's drain loop body).
func (c *Controller) MarkBlocked(link int) { c.blocked[link].Set() }

// MarkSent clears the blocked flag for a link after a successful send
// on it — the non-ConditionalRR clearing path (spec.md §4.5).
func (c *Controller) MarkSent(link int) { c.blocked[link].UnSet() }

// Decide constructs a SchedulingMessage from the fragment's offset/num,
// the latest MAC snapshot, and the current blocked mask, then invokes
// the selected policy. On ConditionalRR's "no decision" stalemate it
// clears both blocked flags so the next attempt re-probes, per the
// resolved "which variant clears blocked_signals" ambiguity (only
// ConditionalRR does); it returns ok=false so the caller retries.
func (c *Controller) Decide(offset, num int, snap *macmon.Snapshot) (pt packet.PacketType, ok bool) {
	msg := policy.Message{
		Offset:         offset,
		Num:            num,
		CurrentTime:    time.Now(),
		BlockedSignals: [2]bool{c.blocked[0].IsSet(), c.blocked[1].IsSet()},
		AC1Info:        c.queueDepths(snap),
		MCSValues:      c.txRates(snap),
	}

	pt, ok = policy.Evaluate(c.kind, msg, c.params)
	if !ok && c.kind == policy.ConditionalRR {
		c.blocked[0].UnSet()
		c.blocked[1].UnSet()
	}
	return pt, ok
}

func (c *Controller) queueDepths(snap *macmon.Snapshot) []int {
	if snap == nil {
		return nil
	}
	depths := make([]int, len(c.devices))
	for i, dev := range c.devices {
		if q, ok := snap.Queues[dev]; ok {
			depths[i] = q[1] // AC=1 is the queue the policies reason about
		}
	}
	return depths
}

func (c *Controller) txRates(snap *macmon.Snapshot) []float64 {
	if snap == nil {
		return nil
	}
	rates := make([]float64, len(c.devices))
	for i, dev := range c.devices {
		if li, ok := snap.Link[dev]; ok {
			rates[i] = li.TxRate
		}
	}
	return rates
}
