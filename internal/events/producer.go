package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Topics struct {
	Orders         string
	Inventory      string
	Reconciliation string
}

// KafkaProducer writes JSON events, keyed by their aggregate, to one
// writer per topic.
type KafkaProducer struct {
	brokers        []string
	orders         *kafka.Writer
	inventory      *kafka.Writer
	reconciliation *kafka.Writer
	logger         *zap.Logger
}

func NewKafkaProducer(brokers string, topics Topics, logger *zap.Logger) (*KafkaProducer, error) {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(addrs...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  10,
		}
	}

	return &KafkaProducer{
		brokers:        addrs,
		orders:         newWriter(topics.Orders),
		inventory:      newWriter(topics.Inventory),
		reconciliation: newWriter(topics.Reconciliation),
		logger:         logger,
	}, nil
}

func (p *KafkaProducer) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error {
	return p.publish(ctx, p.orders, "ORDER#"+event.OrderNumber, event.EventID, event)
}

func (p *KafkaProducer) PublishLowStock(ctx context.Context, event LowStockEvent) error {
	return p.publish(ctx, p.inventory, "INVENTORY#"+event.Target, event.EventID, event)
}

func (p *KafkaProducer) PublishReconciliation(ctx context.Context, event ReconciliationEvent) error {
	return p.publish(ctx, p.reconciliation, "ORDER#"+event.OrderNumber, event.EventID, event)
}

func (p *KafkaProducer) publish(ctx context.Context, w *kafka.Writer, key, eventID string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("event_id", eventID), zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("topic", w.Topic),
			zap.String("event_id", eventID),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Event published",
		zap.String("topic", w.Topic),
		zap.String("key", key),
		zap.String("event_id", eventID))
	return nil
}

// HealthCheck dials the first reachable broker.
func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	var lastErr error
	for _, addr := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

func (p *KafkaProducer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.orders, p.inventory, p.reconciliation} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(b); err != nil {
			b = net.JoinHostPort(b, "9092")
		}
		out = append(out, b)
	}
	return out
}

// NopProducer drops every event. It is used when Kafka is disabled.
type NopProducer struct{}

func (NopProducer) PublishOrderCreated(context.Context, OrderCreatedEvent) error     { return nil }
func (NopProducer) PublishLowStock(context.Context, LowStockEvent) error             { return nil }
func (NopProducer) PublishReconciliation(context.Context, ReconciliationEvent) error { return nil }
func (NopProducer) HealthCheck(context.Context) error                                { return nil }
func (NopProducer) Close() error                                                     { return nil }
