package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"dixis-bulk-orders/config"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/metrics"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/service"
)

// Event types carried in the event-type header
const (
	EventTypeLowStock = "inventory.low_stock"
	EventTypeAudit    = "orders.audit"
)

// ErrCircuitOpen is returned while the broker circuit is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// messageWriter is the part of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BreakerConfig configures the producer circuit breaker
type BreakerConfig struct {
	FailureThreshold uint32        // consecutive failures that open the circuit
	Timeout          time.Duration // time spent open before a trial request
	MaxRequests      uint32        // trial requests allowed while half-open
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Timeout: 30 * time.Second, MaxRequests: 1}
}

// Producer publishes low-stock signals and audit entries to Kafka behind a circuit breaker
type Producer struct {
	lowStock      messageWriter
	audit         messageWriter
	lowStockTopic string
	auditTopic    string
	breaker       *gobreaker.CircuitBreaker
	metrics       *metrics.Metrics
	logger        *logging.Logger
}

var (
	_ service.LowStockNotifier = (*Producer)(nil)
	_ service.AuditSink        = (*Producer)(nil)
)

// NewProducer creates a producer with one writer per topic
func NewProducer(cfg config.KafkaConfig, m *metrics.Metrics, logger *logging.Logger) *Producer {
	return newProducer(
		newWriter(cfg.Brokers, cfg.LowStockTopic),
		newWriter(cfg.Brokers, cfg.AuditTopic),
		cfg.LowStockTopic,
		cfg.AuditTopic,
		DefaultBreakerConfig(),
		m,
		logger,
	)
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

func newProducer(lowStock, audit messageWriter, lowStockTopic, auditTopic string, bc BreakerConfig, m *metrics.Metrics, logger *logging.Logger) *Producer {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("event_producer")

	settings := gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: bc.MaxRequests,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Producer{
		lowStock:      lowStock,
		audit:         audit,
		lowStockTopic: lowStockTopic,
		auditTopic:    auditTopic,
		breaker:       gobreaker.NewCircuitBreaker(settings),
		metrics:       m,
		logger:        logger,
	}
}

// NotifyLowStock publishes one message per signal, keyed by product id
func (p *Producer) NotifyLowStock(ctx context.Context, signals []models.LowStockSignal) error {
	if len(signals) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(signals))
	for _, s := range signals {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal low-stock signal: %w", err)
		}
		msgs = append(msgs, newMessage(strconv.FormatInt(s.ProductID, 10), data, s.EventID, EventTypeLowStock, s.TenantID, s.RaisedAt))
	}
	return p.publish(ctx, p.lowStock, p.lowStockTopic, msgs)
}

// Record publishes an audit entry keyed by order id
func (p *Producer) Record(ctx context.Context, entry models.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	msg := newMessage(strconv.FormatInt(entry.OrderID, 10), data, entry.EventID, EventTypeAudit, entry.TenantID, entry.OccurredAt)
	if entry.RequestID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "request-id", Value: []byte(entry.RequestID)})
	}
	return p.publish(ctx, p.audit, p.auditTopic, []kafka.Message{msg})
}

func newMessage(key string, value []byte, eventID, eventType string, tenantID int64, at time.Time) kafka.Message {
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(eventID)},
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "tenant-id", Value: []byte(strconv.FormatInt(tenantID, 10))},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: at,
	}
}

func (p *Producer) publish(ctx context.Context, writer messageWriter, topic string, msgs []kafka.Message) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, writer.WriteMessages(ctx, msgs...)
	})
	if err == nil {
		return nil
	}

	p.metrics.RecordPublishFailure(topic)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, ErrCircuitOpen)
	}
	p.logger.Error("❌ Error publishing messages", "topic", topic, "count", len(msgs), "error", err)
	return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
}

// Close closes both writers
func (p *Producer) Close() error {
	var errs []error
	if err := p.lowStock.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close writer for topic %s: %w", p.lowStockTopic, err))
	}
	if err := p.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close writer for topic %s: %w", p.auditTopic, err))
	}
	return errors.Join(errs...)
}
