package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backoffice/server/internal/services"

	"github.com/segmentio/kafka-go"
)

// MessageWriter - часть *kafka.Writer, нужная нотификатору
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier публикует AlertEvent в топик алертов
type KafkaNotifier struct {
	writer MessageWriter
}

// NewKafkaWriter создает writer для топика
func NewKafkaWriter(brokers []string, topic string, creds Credentials) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Transport:    CreateKafkaTransport(creds),
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer}
}

// Notify отправляет событие одним сообщением; ключ - тип события
func (n *KafkaNotifier) Notify(ctx context.Context, event services.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode alert event: %w", err)
	}
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: payload,
		Time:  event.EmittedAt,
	}); err != nil {
		return fmt.Errorf("kafka write alerts: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
