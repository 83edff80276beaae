package txpart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/macmon"
	"github.com/QianrenLi/stream-replay/internal/packet"
	"github.com/QianrenLi/stream-replay/internal/policy"
)

func TestDecideHardThresholdRoutesByOffset(t *testing.T) {
	c := New(policy.HardThreshold, config.PolicyParameter{Theta1: 0.5}, []string{"wlan0", "wlan1"})
	pt, ok := c.Decide(0, 10, nil)
	require.True(t, ok)
	require.Equal(t, 0, pt.LinkID())

	pt, ok = c.Decide(9, 10, nil)
	require.True(t, ok)
	require.Equal(t, 1, pt.LinkID())
}

func TestMarkBlockedAndSent(t *testing.T) {
	c := New(policy.HardThreshold, config.PolicyParameter{}, nil)
	require.False(t, c.Blocked(0))
	c.MarkBlocked(0)
	require.True(t, c.Blocked(0))
	c.MarkSent(0)
	require.False(t, c.Blocked(0))
}

func TestConditionalRRStalemateClearsBlockedMask(t *testing.T) {
	c := New(policy.ConditionalRR, config.PolicyParameter{}, nil)
	c.MarkBlocked(0)
	c.MarkBlocked(1)
	require.True(t, c.Blocked(0))
	require.True(t, c.Blocked(1))

	_, ok := c.Decide(1, 3, nil)
	require.False(t, ok)
	require.False(t, c.Blocked(0))
	require.False(t, c.Blocked(1))
}

func TestConditionalRRRoutesAroundSingleBlockedLink(t *testing.T) {
	c := New(policy.ConditionalRR, config.PolicyParameter{}, nil)
	c.MarkBlocked(0)

	pt, ok := c.Decide(0, 3, nil)
	require.True(t, ok)
	require.Equal(t, 1, pt.LinkID())
}

func TestDecideUsesMacSnapshotForQueueAware(t *testing.T) {
	c := New(policy.QueueAware, config.PolicyParameter{Theta1: 1, Theta2: 1, Theta3: 1, Theta4: 1}, []string{"wlan0", "wlan1"})
	snap := &macmon.Snapshot{
		Queues: map[string]map[int]int{
			"wlan0": {1: 0},
			"wlan1": {1: 10},
		},
	}
	pt, ok := c.Decide(0, 4, snap)
	require.True(t, ok)
	require.Equal(t, 0, pt.LinkID()) // lower queue depth on link 0 wins
}

func TestDecideNilSnapshotTreatsQueuesAsZero(t *testing.T) {
	c := New(policy.QueueAware, config.PolicyParameter{Theta1: 1, Theta2: 1, Theta3: 1, Theta4: 1}, []string{"wlan0", "wlan1"})
	pt, ok := c.Decide(0, 4, nil)
	require.True(t, ok)
	require.Equal(t, 1, pt.LinkID()) // tie -> second link
}

func TestSetParametersTakesEffect(t *testing.T) {
	c := New(policy.HardThreshold, config.PolicyParameter{Theta1: 0.9}, nil)
	pt, _ := c.Decide(5, 10, nil)
	require.Equal(t, 0, pt.LinkID())

	c.SetParameters(config.PolicyParameter{Theta1: 0.1})
	require.Equal(t, 0.1, c.Parameters().Theta1)
	pt, _ = c.Decide(5, 10, nil)
	require.Equal(t, 1, pt.LinkID())
}

func TestDecideLastFragmentSetsTerminator(t *testing.T) {
	c := New(policy.HardThreshold, config.PolicyParameter{Theta1: 0.5}, nil)
	pt, ok := c.Decide(9, 10, nil)
	require.True(t, ok)
	require.True(t, pt.IsTerminator())
	require.Equal(t, packet.LastPacketInSecondLink, pt)
}
