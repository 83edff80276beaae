// Package policy implements the scheduling policy family: pure
// functions of (SchedulingMessage, PolicyParameter) -> (PacketType,
// decided) that pick which link carries a fragment (spec.md §4.4).
package policy

import (
	"math"
	"time"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/packet"
)

// Kind identifies a policy variant. Kept as a closed tagged enum rather
// than a dynamic-dispatch table, per spec.md §9's explicit guidance.
type Kind int

const (
	HardThreshold Kind = iota
	ConditionalRR
	QueueAware
	QueueAwareBitrate
)

// ParseKind maps a manifest policy name to a Kind.
func ParseKind(name string) Kind {
	switch name {
	case "conditional_rr":
		return ConditionalRR
	case "queue_aware":
		return QueueAware
	case "queue_aware_bitrate":
		return QueueAwareBitrate
	default:
		return HardThreshold
	}
}

// Message is the SchedulingMessage derived per fragment at send time.
type Message struct {
	Seq            uint32
	Offset         int
	Num            int
	ArrivalTime    time.Time
	CurrentTime    time.Time
	BlockedSignals [2]bool
	AC1Info        []int     // per-interface AC=1 queue depth, interface order
	MCSValues      []float64 // optional per-interface tx bitrate, nil if absent
}

const bitrateEpsilon = 0.01

// Evaluate dispatches to the selected policy and returns the resulting
// packet type, or ok=false for ConditionalRR's "no decision" stalemate.
func Evaluate(kind Kind, msg Message, params config.PolicyParameter) (pt packet.PacketType, ok bool) {
	switch kind {
	case ConditionalRR:
		return evalConditionalRR(msg)
	case QueueAware:
		return evalQueueAware(msg, params), true
	case QueueAwareBitrate:
		return evalQueueAwareBitrate(msg, params), true
	default:
		return evalHardThreshold(msg, params), true
	}
}

func isLast(msg Message) bool { return msg.Offset == msg.Num-1 }

func terminate(link int, last bool) packet.PacketType {
	if last {
		if link == 0 {
			return packet.LastPacketInFirstLink
		}
		return packet.LastPacketInSecondLink
	}
	if link == 0 {
		return packet.FirstLink
	}
	return packet.SecondLink
}

// evalHardThreshold routes fragments with offset/num >= theta1 to the
// second link; earlier fragments go to the first link. Total: always
// returns a decision, and monotonic in offset for fixed (num, theta1).
func evalHardThreshold(msg Message, params config.PolicyParameter) packet.PacketType {
	frac := float64(msg.Offset) / float64(msg.Num)
	link := 0
	if frac >= params.Theta1 {
		link = 1
	}
	return terminate(link, isLast(msg))
}

// evalConditionalRR: if neither link is blocked, use the first link; if
// only the first is blocked, use the second; if both are blocked,
// return "no decision" so the caller waits for drain.
func evalConditionalRR(msg Message) (packet.PacketType, bool) {
	blockedFirst, blockedSecond := msg.BlockedSignals[0], msg.BlockedSignals[1]
	last := isLast(msg)
	switch {
	case !blockedFirst:
		return terminate(0, last), true
	case !blockedSecond:
		return terminate(1, last), true
	default:
		return 0, false
	}
}

// evalQueueAware routes by v1 = (left+q1)^theta1/theta3 vs
// v2 = (left+q2)^theta2/theta4, where qi = AC1Info[i]. Ties (v1 == v2)
// go to the second link (strict less-than test).
func evalQueueAware(msg Message, params config.PolicyParameter) packet.PacketType {
	left := float64(msg.Num - msg.Offset)
	q1, q2 := queueDepth(msg.AC1Info, 0), queueDepth(msg.AC1Info, 1)

	v1 := math.Pow(left+q1, params.Theta1) / params.Theta3
	v2 := math.Pow(left+q2, params.Theta2) / params.Theta4

	link := 1
	if v1 < v2 {
		link = 0
	}
	return terminate(link, isLast(msg))
}

// evalQueueAwareBitrate is the MCS-aware variant: v1 = (left+q1)/(theta3*m1+eps)
// vs v2 = (left+q2)/(theta4*m2+eps).
func evalQueueAwareBitrate(msg Message, params config.PolicyParameter) packet.PacketType {
	left := float64(msg.Num - msg.Offset)
	q1, q2 := queueDepth(msg.AC1Info, 0), queueDepth(msg.AC1Info, 1)
	m1, m2 := mcsValue(msg.MCSValues, 0), mcsValue(msg.MCSValues, 1)

	v1 := (left + q1) / (params.Theta3*m1 + bitrateEpsilon)
	v2 := (left + q2) / (params.Theta4*m2 + bitrateEpsilon)

	link := 1
	if v1 < v2 {
		link = 0
	}
	return terminate(link, isLast(msg))
}

func queueDepth(ac1Info []int, i int) float64 {
	if i >= len(ac1Info) {
		return 0
	}
	return float64(ac1Info[i])
}

func mcsValue(mcs []float64, i int) float64 {
	if i >= len(mcs) {
		return 0
	}
	return mcs[i]
}

