package log

import (
	"context"

	kafka "github.com/segmentio/kafka-go"
)

type KafkaAppenderOpt struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	Partition int      `mapstructure:"partition"`
}

type kafkaWriter struct {
	w *kafka.Writer
}

func (k *kafkaWriter) Write(p []byte) (int, error) {
	msg := kafka.Message{Value: append([]byte(nil), p...)}
	if err := k.w.WriteMessages(context.Background(), msg); err != nil {
		return 0, err
	}
	return len(p), nil
}

// AddKafkaAppender fans log lines out to a Kafka topic, one message per
// write, best-effort: a shipping failure never blocks the rest of the
// multi-writer chain since logging is already advisory.
func (m *MultiWriter) AddKafkaAppender(options KafkaAppenderOpt) *MultiWriter {
	w := &kafka.Writer{
		Addr:     kafka.TCP(options.Brokers...),
		Topic:    options.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	m.writers = append(m.writers, &kafkaWriter{w: w})
	return m
}
