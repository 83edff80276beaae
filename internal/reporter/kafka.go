package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/QianrenLi/stream-replay/internal/control"
)

// KafkaConfig configures the Kafka-shipped statistics reporter.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Compression  string        `mapstructure:"compression"`
}

// KafkaReporter ships one JSON-encoded message per statistics snapshot
// to a Kafka topic, for fleets that centralize telemetry rather than
// poll each transmitter's control daemon individually.
type KafkaReporter struct {
	w *kafka.Writer
}

// NewKafkaReporter builds a reporter backed by a batching kafka.Writer.
func NewKafkaReporter(cfg KafkaConfig) (*KafkaReporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka reporter: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka reporter: topic is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		Compression:  parseCompression(cfg.Compression),
	}
	return &KafkaReporter{w: w}, nil
}

func parseCompression(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

// Report implements Reporter.
func (k *KafkaReporter) Report(stat control.Statistics) error {
	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("kafka reporter: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.w.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		return fmt.Errorf("kafka reporter: write: %w", err)
	}
	return nil
}

// Close implements Reporter.
func (k *KafkaReporter) Close() error { return k.w.Close() }
