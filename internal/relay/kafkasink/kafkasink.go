// Package kafkasink publishes matched envelopes onto a Kafka topic,
// adapting the producer side of stages/rv-live/kafka.go's franz-go client
// wiring (that file is a consumer; topic existence is still checked the
// same way, via kadm.Client.Metadata).
package kafkasink

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Sink is an asynchronous Kafka producer. Publish copies its argument
// before returning, so callers may reuse or release the slice immediately.
type Sink struct {
	client *kgo.Client
	topic  string
	log    zerolog.Logger
}

// Dial connects to brokers and verifies topic exists before returning.
func Dial(ctx context.Context, brokers []string, topic string, log zerolog.Logger) (*Sink, error) {
	log = log.With().Str("component", "kafka-sink").Logger()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConnIdleTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	admin := kadm.NewClient(client)
	meta, err := admin.Metadata(dctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fetch kafka metadata: %w", err)
	}
	if t, ok := meta.Topics[topic]; !ok || t.Err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka topic %q not found", topic)
	}

	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("kafka sink connected")
	return &Sink{client: client, topic: topic, log: log}, nil
}

// Publish copies data into a new Kafka record and produces it
// asynchronously; delivery failures are logged, never returned, per
// spec.md §9's "Kafka publish failures are logged, not fatal."
func (s *Sink) Publish(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	rec := &kgo.Record{Topic: s.topic, Value: cp}
	s.client.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			s.log.Warn().Err(err).Msg("kafka produce failed")
		}
	})
}

// Close closes the client without calling Flush first.
func (s *Sink) Close() {
	s.client.Close()
}
