package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
)

// Publisher broadcasts lightweight notifications. *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// JobEnqueuer schedules follow-up work for a recorded receipt.
type JobEnqueuer interface {
	EnqueueReceiptRecorded(ctx context.Context, evt receiving.ReceiptRecordedEvent) (*asynq.TaskInfo, error)
}

// Hooks fans receiving events out to redis subscribers, a kafka topic and
// the job queue. Every sink is optional.
type Hooks struct {
	publisher Publisher
	channel   string
	kafka     kafkaMessageWriter
	jobs      JobEnqueuer
	logger    *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(publisher Publisher, channel string, jobs JobEnqueuer, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{publisher: publisher, channel: channel, jobs: jobs, logger: logger}
}

// WithKafka attaches a kafka writer for receipt events.
func (h *Hooks) WithKafka(writer kafkaMessageWriter) *Hooks {
	h.kafka = writer
	return h
}

// NotificationMessage is the pub/sub payload announcing a receipt on an item.
func NotificationMessage(itemID int64) string {
	return fmt.Sprintf("item-received:%d", itemID)
}

// HandleReceiptRecorded publishes the event to every configured sink. A failing
// sink does not stop the others.
func (h *Hooks) HandleReceiptRecorded(ctx context.Context, evt receiving.ReceiptRecordedEvent) error {
	if h == nil {
		return nil
	}
	if evt.ItemID == 0 {
		return errors.New("integration: receipt event item id required")
	}
	var errs []error
	if h.publisher != nil && h.channel != "" {
		if err := h.publisher.Publish(ctx, h.channel, NotificationMessage(evt.ItemID)).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if h.kafka != nil {
		body, err := json.Marshal(evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("kafka marshal: %w", err))
		} else if err := h.kafka.WriteMessages(ctx, kafka.Message{Key: []byte(strconv.FormatInt(evt.ItemID, 10)), Value: body}); err != nil {
			errs = append(errs, fmt.Errorf("kafka write: %w", err))
		}
	}
	if h.jobs != nil {
		if _, err := h.jobs.EnqueueReceiptRecorded(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("enqueue: %w", err))
		}
	}
	if len(errs) > 0 {
		h.logger.Warn("receipt event delivery incomplete", slog.Int64("item_id", evt.ItemID), slog.Int("failed_sinks", len(errs)))
	}
	return errors.Join(errs...)
}
