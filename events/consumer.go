package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"dixis-bulk-orders/apperrors"
	"dixis-bulk-orders/config"
	"dixis-bulk-orders/logging"
	"dixis-bulk-orders/models"
	"dixis-bulk-orders/service"
)

const (
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// FulfillmentConsumer reconciles inventory for every fulfillment event.
// A message is committed once reconciled or when it can never succeed;
// retryable failures keep the message and retry it with backoff.
type FulfillmentConsumer struct {
	reader     messageReader
	reconciler service.InventoryReconcilerInterface
	logger     *logging.Logger
	retryDelay time.Duration
}

// NewFulfillmentConsumer creates a consumer-group reader on the fulfillment topic
func NewFulfillmentConsumer(cfg config.KafkaConfig, reconciler service.InventoryReconcilerInterface, logger *logging.Logger) *FulfillmentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.ConsumerGroup,
		Topic:    cfg.FulfillmentTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newFulfillmentConsumer(reader, reconciler, logger)
}

func newFulfillmentConsumer(reader messageReader, reconciler service.InventoryReconcilerInterface, logger *logging.Logger) *FulfillmentConsumer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FulfillmentConsumer{
		reader:     reader,
		reconciler: reconciler,
		logger:     logger.WithComponent("fulfillment_consumer"),
		retryDelay: initialRetryDelay,
	}
}

// Run consumes until ctx is cancelled
func (c *FulfillmentConsumer) Run(ctx context.Context) error {
	c.logger.Info("Starting fulfillment consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping fulfillment consumer")
				return nil
			}
			c.logger.Error("❌ Error fetching message", "error", err)
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}
	}
}

// process handles one message until it is committed; false means ctx ended first
func (c *FulfillmentConsumer) process(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for {
		commit, err := c.HandleMessage(ctx, msg)
		if commit {
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("❌ Error committing message", "offset", msg.Offset, "error", err)
			}
			return true
		}

		c.logger.Warn("⚠️ Fulfillment event will be retried", "offset", msg.Offset, "retryIn", delay.String(), "error", err)
		if !sleep(ctx, delay) {
			return false
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// HandleMessage reconciles the order named by a fulfillment event.
// commit is false only for failures a later attempt may fix.
func (c *FulfillmentConsumer) HandleMessage(ctx context.Context, msg kafka.Message) (commit bool, err error) {
	var event models.FulfillmentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("❌ Error parsing fulfillment event", "offset", msg.Offset, "error", err)
		return true, fmt.Errorf("failed to unmarshal fulfillment event: %w", err)
	}
	if event.OrderID <= 0 || event.TenantID <= 0 {
		c.logger.Error("❌ Fulfillment event without order or tenant", "offset", msg.Offset)
		return true, fmt.Errorf("fulfillment event requires orderId and tenantId")
	}

	rc := models.RequestContext{
		TenantID:  event.TenantID,
		RequestID: header(msg, "request-id"),
		ActorID:   "fulfillment-consumer",
	}
	if rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}

	result, err := c.reconciler.Reconcile(ctx, rc, event.OrderID)
	if err == nil {
		c.logger.Info("✓ Fulfillment event processed", "orderId", event.OrderID, "adjustments", len(result.Adjustments))
		return true, nil
	}

	if apperrors.IsRetryable(err) || !isAppError(err) {
		return false, err
	}
	c.logger.Warn("⚠️ Fulfillment event dropped", "orderId", event.OrderID, "tenantId", event.TenantID, "error", err)
	return true, err
}

// Close closes the reader
func (c *FulfillmentConsumer) Close() error {
	return c.reader.Close()
}

func isAppError(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr)
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
