package cmd

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendCommandDeliversJSONEnvelope(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer conn.Close()

	err = sendCommand(conn.LocalAddr().String(), map[string]interface{}{
		"Throttle": map[string]float64{"cam0": 5.5},
	})
	require.NoError(t, err)

	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	var decoded map[string]map[string]map[string]float64
	require.NoError(t, json.Unmarshal(buf[:n], &decoded))
	require.Equal(t, 5.5, decoded["cmd"]["Throttle"]["cam0"])
}

func TestFetchStatisticsRoundTrip(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		buf := make([]byte, 2048)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var req map[string]interface{}
		json.Unmarshal(buf[:n], &req)

		reply, _ := json.Marshal(map[string]interface{}{
			"cmd": map[string]interface{}{
				"Statistics": map[string]interface{}{
					"flow_stat": map[string]interface{}{
						"cam0": map[string]interface{}{"rtt": 0.02, "frame_count": 42},
					},
				},
			},
		})
		conn.WriteToUDP(reply, from)
	}()

	stat, err := fetchStatistics(conn.LocalAddr().String())
	require.NoError(t, err)
	require.Equal(t, 0.02, stat.FlowStat["cam0"].RTT)
	require.Equal(t, 42, stat.FlowStat["cam0"].FrameCount)
}
