package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventTypeHeader заголовок с типом события, чтобы фильтровать без разбора тела
const EventTypeHeader = "event_type"

var eventsSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cart_events_sent_total",
		Help: "Cart events written to kafka by type and result",
	},
	[]string{"type", "result"},
)

func init() {
	prometheus.MustRegister(eventsSentTotal)
}

// Producer пишет события корзин. Ключ сообщения id корзины, Hash-балансер
// кладет все события одной корзины в одну партицию, поэтому порядок сохраняется.
type Producer struct {
	Writer WriterInterface
	Logger *zap.SugaredLogger
}

func NewProducer(brokers []string, topic string, logger *zap.SugaredLogger) *Producer {
	return &Producer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		Logger: logger,
	}
}

func (p *Producer) SendEvent(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal cart event: %w", err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.CartID),
		Value:   value,
		Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte(event.Type)}},
		Time:    event.Timestamp,
	})
	if err != nil {
		eventsSentTotal.WithLabelValues(string(event.Type), "failed").Inc()
		p.Logger.Errorw("failed to write cart event",
			"cart_id", event.CartID,
			"type", event.Type,
			"err", err,
		)
		return err
	}

	eventsSentTotal.WithLabelValues(string(event.Type), "ok").Inc()
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NopProducer используется, когда kafka не настроена
type NopProducer struct{}

func (NopProducer) SendEvent(context.Context, Event) error {
	return nil
}

func (NopProducer) Close() error {
	return nil
}
