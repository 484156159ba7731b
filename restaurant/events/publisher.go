package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Lifecycle event kinds consumed by the analytics dashboard.
const (
	ReservationCreated   = "reservation.created"
	ReservationCancelled = "reservation.cancelled"
	OrderFinalized       = "order.finalized"
	OrderCancelled       = "order.cancelled"
)

type Config struct {
	Brokers string `envconfig:"BROKERS" split_words:"true"`
	Topic   string `envconfig:"TOPIC" split_words:"true" default:"concierge.lifecycle"`
}

type Event struct {
	Kind    string          `json:"kind"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Publisher writes lifecycle events to Kafka. A nil Publisher is valid and
// drops every event, so eventing stays optional.
type Publisher struct {
	writer *kafka.Writer
}

// New returns nil when no brokers are configured.
func New(cfg Config) *Publisher {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    strings.TrimSpace(cfg.Topic),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish is best effort: the store transaction has already committed, so
// a broker failure is logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, kind string, key string, payload any) {
	if p == nil || p.writer == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("marshal lifecycle event")
		return
	}
	value, err := json.Marshal(Event{Kind: kind, At: time.Now().UTC(), Payload: raw})
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("encode lifecycle event")
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("publish lifecycle event")
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
