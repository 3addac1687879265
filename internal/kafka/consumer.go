package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	kgo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var eventsConsumedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cart_events_consumed_total",
		Help: "Cart events read from kafka by type and result",
	},
	[]string{"type", "result"},
)

func init() {
	prometheus.MustRegister(eventsConsumedTotal)
}

// Consumer читает топик событий корзин в составе consumer group.
// Смещение коммитится после обработки сообщения, так что доставка at-least-once.
type Consumer struct {
	Reader ReaderInterface
	Logger *zap.SugaredLogger
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.SugaredLogger) EventConsumer {
	return &Consumer{
		Reader: kgo.NewReader(kgo.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6, // 10MB
		}),
		Logger: logger,
	}
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, Event) error) {
	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			c.Logger.Errorf("failed to fetch cart event: %v", err)
			continue
		}

		c.process(ctx, msg, handler)

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Warnw("failed to commit cart event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"err", err,
			)
		}
	}
}

// process битые сообщения и ошибки обработчика только логируются, иначе одно
// сообщение остановит чтение всей партиции
func (c *Consumer) process(ctx context.Context, msg kgo.Message, handler func(context.Context, Event) error) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		eventsConsumedTotal.WithLabelValues("unknown", "malformed").Inc()
		c.Logger.Errorw("malformed cart event",
			"key", string(msg.Key),
			"offset", msg.Offset,
			"err", err,
		)
		return
	}

	if err := handler(ctx, event); err != nil {
		eventsConsumedTotal.WithLabelValues(string(event.Type), "failed").Inc()
		c.Logger.Errorw("failed to process cart event",
			"cart_id", event.CartID,
			"type", event.Type,
			"err", err,
		)
		return
	}
	eventsConsumedTotal.WithLabelValues(string(event.Type), "ok").Inc()
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}
