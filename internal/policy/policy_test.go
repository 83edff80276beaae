package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/packet"
)

func TestHardThresholdScenario(t *testing.T) {
	// Scenario 3 from spec.md §8: theta1=0.5, num=10.
	params := config.PolicyParameter{Theta1: 0.5}
	for offset := 0; offset < 10; offset++ {
		msg := Message{Offset: offset, Num: 10}
		pt, ok := Evaluate(HardThreshold, msg, params)
		require.True(t, ok)
		wantLink := 0
		if offset >= 5 {
			wantLink = 1
		}
		require.Equal(t, wantLink, pt.LinkID(), "offset=%d", offset)
	}
	last, ok := Evaluate(HardThreshold, Message{Offset: 9, Num: 10}, params)
	require.True(t, ok)
	require.Equal(t, packet.LastPacketInSecondLink, last)
}

func TestHardThresholdMonotonic(t *testing.T) {
	params := config.PolicyParameter{Theta1: 0.3}
	prevLink := 0
	for offset := 0; offset < 20; offset++ {
		pt, _ := Evaluate(HardThreshold, Message{Offset: offset, Num: 20}, params)
		require.GreaterOrEqual(t, pt.LinkID(), prevLink)
		prevLink = pt.LinkID()
	}
}

func TestConditionalRRScenario(t *testing.T) {
	msg := Message{Offset: 2, Num: 3, BlockedSignals: [2]bool{true, false}}
	pt, ok := Evaluate(ConditionalRR, msg, config.PolicyParameter{})
	require.True(t, ok)
	require.Equal(t, packet.LastPacketInSecondLink, pt)

	msg2 := Message{Offset: 0, Num: 3, BlockedSignals: [2]bool{false, false}}
	pt2, ok2 := Evaluate(ConditionalRR, msg2, config.PolicyParameter{})
	require.True(t, ok2)
	require.Equal(t, packet.FirstLink, pt2)

	msg3 := Message{Offset: 1, Num: 3, BlockedSignals: [2]bool{true, true}}
	_, ok3 := Evaluate(ConditionalRR, msg3, config.PolicyParameter{})
	require.False(t, ok3)
}

func TestQueueAwareTieBreakRoutesSecond(t *testing.T) {
	// left+q equal and thetas equal on both sides -> v1 == v2 -> second link.
	params := config.PolicyParameter{Theta1: 1, Theta2: 1, Theta3: 2, Theta4: 2}
	msg := Message{Offset: 0, Num: 4, AC1Info: []int{3, 3}}
	pt, _ := Evaluate(QueueAware, msg, params)
	require.Equal(t, 1, pt.LinkID())
}

func TestQueueAwarePrefersLowerValue(t *testing.T) {
	params := config.PolicyParameter{Theta1: 1, Theta2: 1, Theta3: 1, Theta4: 1}
	msg := Message{Offset: 0, Num: 4, AC1Info: []int{0, 10}}
	pt, _ := Evaluate(QueueAware, msg, params)
	require.Equal(t, 0, pt.LinkID())
}

func TestQueueAwareBitrateVariant(t *testing.T) {
	params := config.PolicyParameter{Theta3: 1, Theta4: 1}
	msg := Message{Offset: 0, Num: 4, AC1Info: []int{0, 0}, MCSValues: []float64{100, 10}}
	pt, _ := Evaluate(QueueAwareBitrate, msg, params)
	require.Equal(t, 0, pt.LinkID()) // higher MCS on link 0 -> lower v1 -> chosen
}

func TestEdgeCaseSingleFragmentIsTerminator(t *testing.T) {
	params := config.PolicyParameter{Theta1: 0.5}
	pt, ok := Evaluate(HardThreshold, Message{Offset: 0, Num: 1}, params)
	require.True(t, ok)
	require.True(t, pt.IsTerminator())
}
