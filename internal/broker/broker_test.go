package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishOrderPaid(t *testing.T) {
	w := &fakeWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w, "order-events"), nil)

	event := &models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   7,
		Provider:  models.ProviderBkash,
		Amount:    decimal.NewFromInt(1150),
	}
	require.NoError(t, pub.PublishOrderPaid(context.Background(), event))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "order-7", string(w.messages[0].Key))

	var decoded models.OrderPaidEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPaid, decoded.EventType)
	assert.True(t, decimal.NewFromInt(1150).Equal(decoded.Amount))
}

func TestPublishPaymentCallbackWithoutTopic(t *testing.T) {
	pub := NewEventPublisher(NewProducerWithWriter(&fakeWriter{}, "order-events"), nil)

	err := pub.PublishPaymentCallback(context.Background(), &models.PaymentCallbackEvent{OrderID: 1})
	assert.Error(t, err)
}

func TestPublishErrorIsWrapped(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, "order-events")

	err := p.PublishEvent(context.Background(), "k", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestDataLayerQueueKeysByEventID(t *testing.T) {
	w := &fakeWriter{}
	q := NewDataLayerQueue(NewProducerWithWriter(w, "analytics-datalayer"))

	require.NoError(t, q.Push(context.Background(), map[string]interface{}{"event": "purchase", "event_id": "evt-1"}))
	require.NoError(t, q.Push(context.Background(), map[string]interface{}{"event": "gtm.js"}))

	require.Len(t, w.messages, 2)
	assert.Equal(t, "evt-1", string(w.messages[0].Key))
	assert.Equal(t, "datalayer", string(w.messages[1].Key))
}

func TestHandleMessageRoutesCallbacks(t *testing.T) {
	h := NewEventHandler()

	var got *models.PaymentCallbackEvent
	h.OnPaymentCallback(func(_ context.Context, e *models.PaymentCallbackEvent) error {
		got = e
		return nil
	})

	event := models.PaymentCallbackEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypePaymentCallback),
		OrderID:       7,
		Outcome:       models.CallbackSuccess,
		TransactionID: "PAY1",
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: value}))
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.OrderID)
	assert.Equal(t, "PAY1", got.TransactionID)
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	h := NewEventHandler()
	value, _ := json.Marshal(models.NewBaseEvent(models.EventTypeOrderPaid))

	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: value}))
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}

type fakeReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	commits  []int64
	cancel   context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func newFakeReader(offsets ...int64) (*fakeReader, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{cancel: cancel}
	for _, off := range offsets {
		r.messages = append(r.messages, kafka.Message{Offset: off, Key: []byte("order-1")})
	}
	return r, ctx
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	reader, ctx := newFakeReader(10, 11)
	consumer := NewConsumerWithReader(reader, "payment-callbacks", 5, time.Millisecond)

	var handled []int64
	failures := 2
	err := consumer.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if msg.Offset == 10 && failures > 0 {
			failures--
			return errors.New("database unavailable")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	// offset 10 is handled to success before 11 is even fetched
	assert.Equal(t, []int64{10, 10, 10, 11}, handled)
	assert.Equal(t, []int64{10, 11}, reader.commits)
}

func TestConsumerGivesUpAfterBoundedAttempts(t *testing.T) {
	reader, ctx := newFakeReader(20, 21)
	consumer := NewConsumerWithReader(reader, "payment-callbacks", 3, time.Millisecond)

	calls := map[int64]int{}
	err := consumer.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
		calls[msg.Offset]++
		if msg.Offset == 20 {
			return errors.New("still failing")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls[20])
	assert.Equal(t, 1, calls[21])
	assert.Equal(t, []int64{20, 21}, reader.commits)
}

func TestConsumerStopsRetryingOnCancel(t *testing.T) {
	reader, ctx := newFakeReader(30)
	consumer := NewConsumerWithReader(reader, "payment-callbacks", 5, time.Hour)

	err := consumer.StartConsuming(ctx, func(context.Context, kafka.Message) error {
		reader.cancel()
		return errors.New("lock held")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.commits)
}
