package control

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QianrenLi/stream-replay/internal/config"
)

type fakeStream struct {
	throttle float64
	params   config.PolicyParameter
	version  uint32
	stat     FlowStatistics
	hasStat  bool
}

func (f *fakeStream) SetThrottle(mbps float64)                       { f.throttle = mbps }
func (f *fakeStream) SetPolicyParameters(p config.PolicyParameter)   { f.params = p }
func (f *fakeStream) SetVersion(v uint32)                            { f.version = v }
func (f *fakeStream) Statistics() (FlowStatistics, bool)             { return f.stat, f.hasStat }

func newTestDaemon(t *testing.T, streams map[string]StreamHandle) (*Daemon, *net.UDPConn) {
	t.Helper()
	d, err := New("127.0.0.1", 0, streams, nil)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	client, err := net.DialUDP("udp", nil, d.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return d, client
}

func TestHandleThrottleUpdatesNamedStream(t *testing.T) {
	fs := &fakeStream{}
	d, _ := newTestDaemon(t, map[string]StreamHandle{"s1": fs})
	d.handle([]byte(`{"cmd":{"Throttle":{"s1":12.5}}}`), nil)
	require.Equal(t, 12.5, fs.throttle)
}

func TestHandlePolicyParametersUpdatesNamedStream(t *testing.T) {
	fs := &fakeStream{}
	d, _ := newTestDaemon(t, map[string]StreamHandle{"s1": fs})
	d.handle([]byte(`{"cmd":{"PolicyParameters":{"s1":{"theta1":0.5,"theta2":0,"theta3":0,"theta4":0}}}}`), nil)
	require.Equal(t, 0.5, fs.params.Theta1)
}

func TestHandleVersionUpdatesNamedStream(t *testing.T) {
	fs := &fakeStream{}
	d, _ := newTestDaemon(t, map[string]StreamHandle{"s1": fs})
	d.handle([]byte(`{"cmd":{"Version":{"s1":3}}}`), nil)
	require.Equal(t, uint32(3), fs.version)
}

func TestHandleControlUpdatesVersionAndParameters(t *testing.T) {
	fs := &fakeStream{}
	d, _ := newTestDaemon(t, map[string]StreamHandle{"s1": fs})
	d.handle([]byte(`{"cmd":{"Control":{"s1":{"version":2,"policy_parameters":{"theta1":0.25,"theta2":0,"theta3":0,"theta4":0}}}}}`), nil)
	require.Equal(t, uint32(2), fs.version)
	require.Equal(t, 0.25, fs.params.Theta1)
}

func TestHandleUnknownStreamNameIsIgnored(t *testing.T) {
	fs := &fakeStream{}
	d, _ := newTestDaemon(t, map[string]StreamHandle{"s1": fs})
	require.NotPanics(t, func() {
		d.handle([]byte(`{"cmd":{"Throttle":{"other":1.0}}}`), nil)
	})
	require.Equal(t, 0.0, fs.throttle)
}

func TestReplyStatisticsOverUDP(t *testing.T) {
	fs := &fakeStream{stat: FlowStatistics{RTT: 0.01, Bitrate: 5000}, hasStat: true}
	d, client := newTestDaemon(t, map[string]StreamHandle{"s1": fs})

	go d.RunFor(500 * time.Millisecond)

	req, err := json.Marshal(map[string]interface{}{"cmd": map[string]interface{}{"Statistics": map[string]interface{}{}}})
	require.NoError(t, err)
	_, err = client.Write(req)
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	require.NoError(t, err)

	var resp statisticsResponse
	require.NoError(t, json.Unmarshal(buf[:n], &resp))
	require.Equal(t, 0.01, resp.Cmd.Statistics.FlowStat["s1"].RTT)
	require.Equal(t, uint64(5000), resp.Cmd.Statistics.FlowStat["s1"].Bitrate)
}
