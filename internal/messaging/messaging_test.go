package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"backoffice/server/internal/services"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKafkaBrokers(t *testing.T) {
	assert.Equal(t, []string{}, ParseKafkaBrokers(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseKafkaBrokers(" a:9092, b:9092 ,"))
}

func TestCredentials(t *testing.T) {
	plainText := CreateKafkaDialer(Credentials{})
	assert.Nil(t, plainText.SASLMechanism)
	assert.Nil(t, plainText.TLS)

	secured := CreateKafkaDialer(Credentials{Username: "u", Password: "p"})
	assert.NotNil(t, secured.SASLMechanism)
	assert.NotNil(t, secured.TLS)

	transport := CreateKafkaTransport(Credentials{CACert: "not a pem"})
	assert.Nil(t, transport.SASL)
	require.NotNil(t, transport.TLS)
	assert.Nil(t, transport.TLS.RootCAs)
}

func TestDecodeOrderEvent(t *testing.T) {
	event, err := DecodeOrderEvent([]byte(`{"event_type":"order_served","plato_id":"d1","cantidad":2,"referencia":"T-7"}`))
	require.NoError(t, err)
	assert.Equal(t, EventOrderServed, event.EventType)
	assert.Equal(t, 2.0, event.Quantity)

	bad := []string{
		`not json`,
		`{"event_type":"REFUND","plato_id":"d1","cantidad":1}`,
		`{"event_type":"ORDER_SERVED","cantidad":1}`,
		`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":0}`,
	}
	for _, raw := range bad {
		_, err := DecodeOrderEvent([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedEvent, raw)
	}
}

type fakeLedger struct {
	demands   []services.DishDemand
	reference string
	err       error
	// transient - сколько первых вызовов вернут StorageError
	transient int
	applied   map[string]bool
}

func (f *fakeLedger) ConsumeDishes(_ context.Context, demands []services.DishDemand, _, reference string) (*services.ProductionResult, error) {
	if f.transient > 0 {
		f.transient--
		return nil, &services.StorageError{Op: "explode production", Err: errors.New("database is locked")}
	}
	if f.err != nil {
		return &services.ProductionResult{}, f.err
	}
	f.demands = append(f.demands, demands...)
	f.reference = reference
	if reference != "" {
		if f.applied == nil {
			f.applied = map[string]bool{}
		}
		f.applied[reference] = true
	}
	return &services.ProductionResult{Applied: true}, nil
}

func (f *fakeLedger) ReferenceApplied(_ context.Context, reference string) (bool, error) {
	return f.applied[reference], nil
}

type fakeProduction struct {
	inputs []services.ProductionInput
}

func (f *fakeProduction) Record(_ context.Context, input services.ProductionInput) (*services.ProductionRecord, error) {
	f.inputs = append(f.inputs, input)
	return &services.ProductionRecord{}, nil
}

func TestOrderEventHandler_Routes(t *testing.T) {
	ledger := &fakeLedger{}
	production := &fakeProduction{}
	h := NewOrderEventHandler(ledger, production)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, []byte(`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":3,"referencia":"T-1"}`)))
	require.Len(t, ledger.demands, 1)
	assert.Equal(t, services.DishDemand{DishID: "d1", Quantity: 3}, ledger.demands[0])
	assert.Equal(t, "T-1", ledger.reference)

	require.NoError(t, h.Handle(ctx, []byte(`{"event_type":"PRODUCTION_COMPLETED","plato_id":"d2","cantidad":5}`)))
	require.Len(t, production.inputs, 1)
	assert.Equal(t, "d2", production.inputs[0].DishID)
	assert.Len(t, ledger.demands, 1)

	err := h.Handle(ctx, []byte(`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":3,"referencia":"T-1"}`))
	assert.ErrorIs(t, err, ErrDuplicateEvent)
	assert.Len(t, ledger.demands, 1)

	ledger.err = &services.InsufficientStockError{IngredientID: "i1"}
	err = h.Handle(ctx, []byte(`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":1}`))
	assert.Equal(t, services.KindInsufficientStock, services.KindOf(err))
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(nil))
	assert.False(t, retryable(ErrMalformedEvent))
	assert.False(t, retryable(ErrDuplicateEvent))
	assert.False(t, retryable(&services.InsufficientStockError{}))
	assert.False(t, retryable(&services.NotFoundError{Entity: "plato", ID: "x"}))
	assert.True(t, retryable(&services.StorageError{Op: "x", Err: errors.New("conn reset")}))
	assert.True(t, retryable(context.DeadlineExceeded))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	// "ñ" занимает 2 байта: обрезка по 3 байтам не должна разрезать руну
	got := truncate("aññ", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(truncate("ññññ", 3)))
	assert.True(t, utf8.ValidString(truncate("a\xffb", 10)))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifier(w)
	event := services.AlertEvent{
		Type:      "ALERTAS_INVENTARIO",
		Alerts:    []services.AlertDetail{{Kind: "stock", Level: services.LevelCritical, IngredientID: "i1"}},
		EmittedAt: time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.Notify(context.Background(), event))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ALERTAS_INVENTARIO", string(w.msgs[0].Key))

	var decoded services.AlertEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Len(t, decoded.Alerts, 1)

	w.err = errors.New("broker down")
	assert.Error(t, n.Notify(context.Background(), event))
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	done      chan struct{}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	close(f.done)
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestOrderEventConsumer_CommitsSkippedMessages(t *testing.T) {
	reader := &fakeReader{
		done: make(chan struct{}),
		queue: []kafka.Message{
			{Offset: 1, Value: []byte(`garbage`)},
			{Offset: 2, Value: []byte(`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":1}`)},
		},
	}
	ledger := &fakeLedger{}
	c := &OrderEventConsumer{reader: reader, handler: NewOrderEventHandler(ledger, &fakeProduction{}), topic: "order-events", retry: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-reader.done

	assert.Equal(t, []int64{1, 2}, reader.commits())
	assert.Len(t, ledger.demands, 1)
}

func TestOrderEventConsumer_RetriesStorageErrors(t *testing.T) {
	reader := &fakeReader{
		done:  make(chan struct{}),
		queue: []kafka.Message{{Offset: 7, Value: []byte(`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":1,"referencia":"T-9"}`)}},
	}
	ledger := &fakeLedger{transient: 2}
	c := &OrderEventConsumer{reader: reader, handler: NewOrderEventHandler(ledger, &fakeProduction{}), topic: "order-events", retry: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	assert.Eventually(t, func() bool { return len(reader.commits()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-reader.done

	assert.Equal(t, []int64{7}, reader.commits())
	assert.Len(t, ledger.demands, 1)
	assert.Equal(t, 0, ledger.transient)
}

func TestOrderEventConsumer_NoCommitWhileStorageDown(t *testing.T) {
	reader := &fakeReader{
		done:  make(chan struct{}),
		queue: []kafka.Message{{Offset: 3, Value: []byte(`{"event_type":"ORDER_SERVED","plato_id":"d1","cantidad":1}`)}},
	}
	ledger := &fakeLedger{transient: 1 << 30}
	c := &OrderEventConsumer{reader: reader, handler: NewOrderEventHandler(ledger, &fakeProduction{}), topic: "order-events", retry: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-reader.done

	assert.Empty(t, reader.commits())
	assert.Empty(t, ledger.demands)
}
