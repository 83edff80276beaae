// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/QianrenLi/stream-replay/internal/log"
)

// GlobalConfig represents the top-level process-level static configuration.
// Maps to the `stream-replay:` root key in YAML.
type GlobalConfig struct {
	Node     NodeConfig        `mapstructure:"node"`
	Control  ControlConfig     `mapstructure:"control"`
	Kafka    GlobalKafkaConfig `mapstructure:"kafka"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
	Log      log.LoggerConfig  `mapstructure:"log"`
	Reporter ReporterConfig    `mapstructure:"reporter"`
	DataDir  string            `mapstructure:"data_dir"`
}

// ─── Node Identity ───

// NodeConfig identifies the host this transmitter instance runs on.
// Load fills in the hostname and IP when they are left empty; no other
// package reads these fields.
type NodeConfig struct {
	IP       string            `mapstructure:"ip"` // empty = auto-detect
	Hostname string            `mapstructure:"hostname"`
	Tags     map[string]string `mapstructure:"tags"`
}

// ─── Control Plane ───

// ControlConfig contains defaults for the UDP control daemon.
type ControlConfig struct {
	DefaultPort int `mapstructure:"default_port"`
}

// ─── Kafka ───

// GlobalKafkaConfig holds process-wide Kafka connection settings. The
// Kafka log appender and the Kafka statistics reporter do not read it;
// each takes its brokers from its own options (log appender options and
// ReporterKafkaConfig).
type GlobalKafkaConfig struct {
	Brokers []string   `mapstructure:"brokers"`
	SASL    SASLConfig `mapstructure:"sasl"`
	TLS     TLSConfig  `mapstructure:"tls"`
}

type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACert             string `mapstructure:"ca_cert"`
	ClientCert         string `mapstructure:"client_cert"`
	ClientKey          string `mapstructure:"client_key"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// ─── Statistics reporter ───

// ReporterConfig selects and configures the optional statistics
// reporter. Mirrors internal/reporter.Config's shape without importing
// that package, which would otherwise import internal/control, which
// imports this package — a cycle. cmd/run.go converts this into a
// reporter.Config at startup.
type ReporterConfig struct {
	Type    string                `mapstructure:"type"`
	Console ReporterConsoleConfig `mapstructure:"console"`
	Kafka   ReporterKafkaConfig   `mapstructure:"kafka"`
}

type ReporterConsoleConfig struct {
	JSON bool `mapstructure:"json"`
}

type ReporterKafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	BatchSize    int      `mapstructure:"batch_size"`
	BatchTimeout int      `mapstructure:"batch_timeout_ms"`
	Compression  string   `mapstructure:"compression"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics server settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure
// `stream-replay: ...`.
type configRoot struct {
	StreamReplay GlobalConfig `mapstructure:"stream-replay"`
}

// Load loads process configuration from file. The YAML file uses
// `stream-replay:` as root key; env vars use STREAM_REPLAY_ prefix
// (e.g. STREAM_REPLAY_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.StreamReplay

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stream-replay.control.default_port", 5566)

	v.SetDefault("stream-replay.log.level", "info")
	v.SetDefault("stream-replay.log.pattern", "%time [%level] %field %msg")
	v.SetDefault("stream-replay.log.time", "2006-01-02T15:04:05.000Z07:00")

	v.SetDefault("stream-replay.metrics.enabled", true)
	v.SetDefault("stream-replay.metrics.listen", ":9091")
	v.SetDefault("stream-replay.metrics.path", "/metrics")

	v.SetDefault("stream-replay.data_dir", "/var/lib/stream-replay")
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults (node hostname/IP auto-detection).
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "trace": true}
	if cfg.Log.Level != "" && !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Log.Level)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	resolvedIP, err := resolveNodeIP(&cfg.Node)
	if err != nil {
		return err
	}
	cfg.Node.IP = resolvedIP

	return nil
}

// resolveNodeIP resolves the node IP address.
// Priority: explicit config value → auto-detect first non-loopback IPv4.
func resolveNodeIP(node *NodeConfig) (string, error) {
	if node.IP != "" {
		return node.IP, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("cannot resolve node IP: failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			if ip4[0] == 169 && ip4[1] == 254 {
				continue
			}
			return ip4.String(), nil
		}
	}

	return "", fmt.Errorf("cannot resolve node IP: set STREAM_REPLAY_NODE_IP or stream-replay.node.ip")
}
