package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/QianrenLi/stream-replay/internal/control"
)

// clientTimeout bounds how long a client command waits for a reply
// (only the Statistics command gets one; the others are fire-and-forget).
const clientTimeout = 3 * time.Second

// sendCommand marshals cmd as the control protocol's {"cmd": {...}}
// envelope and sends it to addr over UDP.
func sendCommand(addr string, cmd interface{}) error {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	data, err := json.Marshal(map[string]interface{}{"cmd": cmd})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// statisticsEnvelope mirrors the daemon's {"cmd": {"Statistics": {...}}}
// reply shape; control.statisticsResponse is unexported, so the client
// declares its own matching view over the exported control.Statistics.
type statisticsEnvelope struct {
	Cmd struct {
		Statistics control.Statistics `json:"Statistics"`
	} `json:"cmd"`
}

// fetchStatistics sends a Statistics command and waits for the reply.
func fetchStatistics(addr string) (control.Statistics, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return control.Statistics{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	req := map[string]interface{}{"cmd": map[string]interface{}{"Statistics": nil}}
	data, err := json.Marshal(req)
	if err != nil {
		return control.Statistics{}, fmt.Errorf("marshal command: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return control.Statistics{}, fmt.Errorf("send command: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(clientTimeout))
	buf := make([]byte, 65536)
	n, err := conn.Read(buf)
	if err != nil {
		return control.Statistics{}, fmt.Errorf("read reply: %w", err)
	}

	var resp statisticsEnvelope
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		return control.Statistics{}, fmt.Errorf("decode reply: %w", err)
	}
	return resp.Cmd.Statistics, nil
}
