package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=interfaces.go -destination=mocks.go -package=kafka -exclude_interfaces=EventProducer,EventConsumer

// ReaderInterface часть kafka.Reader, нужная консьюмеру: чтение без автокоммита и явный коммит
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterInterface часть kafka.Writer, нужная продюсеру
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventProducer публикует события корзин
type EventProducer interface {
	SendEvent(ctx context.Context, event Event) error
	Close() error
}

// EventConsumer читает события корзин и отдает их обработчику до отмены ctx
type EventConsumer interface {
	Consume(ctx context.Context, handler func(context.Context, Event) error)
	Close() error
}
