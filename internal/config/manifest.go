// Package config handles configuration structures: the process-level
// GlobalConfig (config.go) and the per-run Manifest (this file).
package config

import (
	"encoding/json"
	"fmt"
)

// PolicyParameter is the four-float {θ1,θ2,θ3,θ4} record consumed by the
// scheduling policy family. Interpretation depends on the selected policy.
type PolicyParameter struct {
	Theta1 float64 `json:"theta1" yaml:"theta1"`
	Theta2 float64 `json:"theta2" yaml:"theta2"`
	Theta3 float64 `json:"theta3" yaml:"theta3"`
	Theta4 float64 `json:"theta4" yaml:"theta4"`
}

// Link is one managed interface pair: the local address used to send, and
// the address the receiver reports telemetry from.
type Link struct {
	TxIPAddr string `json:"tx_ipaddr" yaml:"tx_ipaddr"`
	RxIPAddr string `json:"rx_ipaddr" yaml:"rx_ipaddr"`
}

// StreamConfig describes one transmitted stream.
type StreamConfig struct {
	Name             string          `json:"name" yaml:"name"`
	Links            []Link          `json:"links" yaml:"links"`
	Tos              uint8           `json:"tos" yaml:"tos"`
	Throttle         float64         `json:"throttle" yaml:"throttle"`
	Policy           string          `json:"policy" yaml:"policy"`
	PolicyParameters PolicyParameter `json:"policy_parameters" yaml:"policy_parameters"`
	Port             uint16          `json:"port" yaml:"port"`
	TargetRTT        float64         `json:"target_rtt" yaml:"target_rtt"`
	CalcRTT          bool            `json:"calc_rtt" yaml:"calc_rtt"`
	Source           string          `json:"source" yaml:"source"`
	StartOffset      int             `json:"start_offset" yaml:"start_offset"`
	Duration         [2]float64      `json:"duration" yaml:"duration"`
	Loops            int             `json:"loops" yaml:"loops"`
	NoLogging        bool            `json:"no_logging" yaml:"no_logging"`
}

// Manifest is the top-level per-run payload: {streams, window_size,
// ipc_port, tx_ipaddrs}.
type Manifest struct {
	Streams    []StreamConfig `json:"streams" yaml:"streams"`
	WindowSize int            `json:"window_size" yaml:"window_size"`
	IPCPort    *int           `json:"ipc_port" yaml:"ipc_port"`
	TxIPAddrs  []string       `json:"tx_ipaddrs" yaml:"tx_ipaddrs"`
}

// Validate checks the manifest and each stream entry against the test
// duration and required fields.
func (m *Manifest) Validate() error {
	if len(m.Streams) == 0 {
		return fmt.Errorf("manifest: at least one stream is required")
	}
	if m.WindowSize <= 0 {
		return fmt.Errorf("manifest: window_size must be positive, got %d", m.WindowSize)
	}

	for i, s := range m.Streams {
		if s.Name == "" {
			return fmt.Errorf("stream[%d]: name is required", i)
		}
		if len(s.Links) == 0 {
			return fmt.Errorf("stream[%d] %q: at least one link is required", i, s.Name)
		}
		if s.Source == "" {
			return fmt.Errorf("stream[%d] %q: source is required", i, s.Name)
		}
		if s.Duration[1] < s.Duration[0] {
			return fmt.Errorf("stream[%d] %q: duration end %.3f precedes start %.3f", i, s.Name, s.Duration[1], s.Duration[0])
		}
		switch s.Policy {
		case "", "hard_threshold", "conditional_rr", "queue_aware", "queue_aware_bitrate":
		default:
			return fmt.Errorf("stream[%d] %q: unknown policy %q", i, s.Name, s.Policy)
		}
	}

	return nil
}

// ParseManifest parses a manifest from JSON, the wire format specified
// for the control/orchestrator interface.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
