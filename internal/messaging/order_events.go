package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/server/internal/services"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventOrderServed         = "ORDER_SERVED"
	EventProductionCompleted = "PRODUCTION_COMPLETED"

	consumerGroupID = "backoffice-stock-group"
)

// OrderEvent - сообщение POS/кухни о проданном или произведенном блюде
type OrderEvent struct {
	EventType string  `json:"event_type"`
	DishID    string  `json:"plato_id"`
	Quantity  float64 `json:"cantidad"`
	Reference string  `json:"referencia"`
	CreatedBy string  `json:"creado_por,omitempty"`
}

// ErrMalformedEvent - сообщение нельзя обработать ни при каком состоянии склада
var ErrMalformedEvent = errors.New("malformed order event")

// ErrDuplicateEvent - по referencia события уже есть движения склада
var ErrDuplicateEvent = errors.New("order event already applied")

const maxRetryDelay = 30 * time.Second

// DecodeOrderEvent разбирает и проверяет сообщение
func DecodeOrderEvent(raw []byte) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	event.EventType = strings.ToUpper(strings.TrimSpace(event.EventType))
	switch event.EventType {
	case EventOrderServed, EventProductionCompleted:
	default:
		return nil, fmt.Errorf("%w: unknown event_type %q", ErrMalformedEvent, event.EventType)
	}
	if event.DishID == "" {
		return nil, fmt.Errorf("%w: plato_id is empty", ErrMalformedEvent)
	}
	if event.Quantity <= 0 {
		return nil, fmt.Errorf("%w: cantidad must be positive", ErrMalformedEvent)
	}
	return &event, nil
}

// DishConsumer списывает escandallos (реализует *services.StockLedger)
type DishConsumer interface {
	ConsumeDishes(ctx context.Context, demands []services.DishDemand, reason, reference string) (*services.ProductionResult, error)
	ReferenceApplied(ctx context.Context, reference string) (bool, error)
}

// ProductionRecorder фиксирует партию (реализует *services.ProductionService)
type ProductionRecorder interface {
	Record(ctx context.Context, input services.ProductionInput) (*services.ProductionRecord, error)
}

// OrderEventHandler превращает события в операции склада
type OrderEventHandler struct {
	ledger     DishConsumer
	production ProductionRecorder
}

func NewOrderEventHandler(ledger DishConsumer, production ProductionRecorder) *OrderEventHandler {
	return &OrderEventHandler{ledger: ledger, production: production}
}

// Handle обрабатывает одно сообщение. Повтор события с той же referencia
// возвращает ErrDuplicateEvent и склад не трогает.
func (h *OrderEventHandler) Handle(ctx context.Context, raw []byte) error {
	event, err := DecodeOrderEvent(raw)
	if err != nil {
		return err
	}
	if event.Reference != "" {
		applied, err := h.ledger.ReferenceApplied(ctx, event.Reference)
		if err != nil {
			return err
		}
		if applied {
			return fmt.Errorf("%w: referencia %s", ErrDuplicateEvent, event.Reference)
		}
	}

	switch event.EventType {
	case EventProductionCompleted:
		_, err = h.production.Record(ctx, services.ProductionInput{
			DishID:    event.DishID,
			Quantity:  event.Quantity,
			CreatedBy: event.CreatedBy,
			Reference: event.Reference,
		})
	default:
		reason := fmt.Sprintf("venta del plato %s", event.DishID)
		_, err = h.ledger.ConsumeDishes(ctx, []services.DishDemand{{DishID: event.DishID, Quantity: event.Quantity}}, reason, event.Reference)
	}
	return err
}

// messageReader - часть *kafka.Reader, нужная консьюмеру
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventConsumer читает топик событий заказов и списывает склад
type OrderEventConsumer struct {
	reader  messageReader
	handler *OrderEventHandler
	topic   string
	retry   time.Duration
}

// NewOrderEventConsumer создает consumer group reader для топика
func NewOrderEventConsumer(brokers []string, topic string, creds Credentials, handler *OrderEventHandler) *OrderEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     consumerGroupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      CreateKafkaDialer(creds),
	})
	return &OrderEventConsumer{reader: reader, handler: handler, topic: topic, retry: time.Second}
}

// Start читает до отмены ctx. Офсет коммитится после обработки, в том числе
// для битых, повторных и отклоненных сообщений; сбои хранилища повторяются.
func (c *OrderEventConsumer) Start(ctx context.Context) {
	log.Info().Str("topic", c.topic).Str("group", consumerGroupID).Msg("📡 Kafka consumer событий заказов запущен")

	go func() {
		defer c.reader.Close()
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("🛑 Kafka consumer событий заказов остановлен")
					return
				}
				log.Warn().Err(err).Msg("⚠️ Kafka consumer: ошибка чтения")
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retry):
				}
				continue
			}

			if !c.process(ctx, msg) {
				log.Info().Msg("🛑 Kafka consumer событий заказов остановлен")
				return
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Int64("offset", msg.Offset).Msg("⚠️ Kafka consumer: не удалось закоммитить офсет")
			}
		}
	}()
}

// process обрабатывает сообщение, повторяя временные сбои с экспоненциальной паузой.
// false - ctx отменен до успешной обработки, офсет коммитить нельзя.
func (c *OrderEventConsumer) process(ctx context.Context, msg kafka.Message) bool {
	delay := c.retry
	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(ctx, msg.Value)
		if !retryable(err) {
			logOutcome(err, msg)
			return true
		}

		log.Error().Err(err).
			Int64("offset", msg.Offset).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("❌ Событие заказа не обработано, повтор")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// retryable: сбой хранилища или чужая ошибка. Битые, дублированные и
// отклоненные доменом события повторять бессмысленно.
func retryable(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedEvent) || errors.Is(err, ErrDuplicateEvent) {
		return false
	}
	kind := services.KindOf(err)
	return kind == "" || kind == services.KindStorage
}

func logOutcome(err error, msg kafka.Message) {
	switch {
	case err == nil:
		log.Debug().Int64("offset", msg.Offset).Msg("📨 Событие заказа обработано")
	case errors.Is(err, ErrDuplicateEvent):
		log.Info().Err(err).Int64("offset", msg.Offset).Msg("ℹ️ Повтор события заказа пропущен")
	case errors.Is(err, ErrMalformedEvent):
		log.Warn().Err(err).Str("payload", truncate(string(msg.Value), 200)).Int64("offset", msg.Offset).Msg("⚠️ Битое событие заказа пропущено")
	default:
		log.Warn().Err(err).Int64("offset", msg.Offset).Int("partition", msg.Partition).Msg("⚠️ Событие заказа отклонено")
	}
}

// truncate режет по границе руны, не длиннее n байт
func truncate(s string, n int) string {
	if len(s) <= n {
		return strings.ToValidUTF8(s, "")
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return strings.ToValidUTF8(s[:cut], "") + "..."
}
