package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
)

type fakeKafka struct {
	messages []kafka.Message
	err      error
}

func (f *fakeKafka) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

type fakeJobs struct {
	events []receiving.ReceiptRecordedEvent
}

func (f *fakeJobs) EnqueueReceiptRecorded(ctx context.Context, evt receiving.ReceiptRecordedEvent) (*asynq.TaskInfo, error) {
	f.events = append(f.events, evt)
	return &asynq.TaskInfo{ID: evt.EventID}, nil
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestHooksFanOut(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	sub := client.Subscribe(ctx, "pedidos:notifications")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	kw := &fakeKafka{}
	jobs := &fakeJobs{}
	hooks := NewHooks(client, "pedidos:notifications", jobs, nil).WithKafka(kw)

	evt := receiving.ReceiptRecordedEvent{EventID: "e-1", ReceiptID: 3, RequestID: 1, ItemID: 42, QuantityReceived: 2, Status: receiving.StatusPartial}
	require.NoError(t, hooks.HandleReceiptRecorded(ctx, evt))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "item-received:42", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}

	require.Len(t, kw.messages, 1)
	require.Equal(t, "42", string(kw.messages[0].Key))
	var decoded receiving.ReceiptRecordedEvent
	require.NoError(t, json.Unmarshal(kw.messages[0].Value, &decoded))
	require.Equal(t, evt.ReceiptID, decoded.ReceiptID)
	require.Equal(t, receiving.StatusPartial, decoded.Status)

	require.Len(t, jobs.events, 1)
}

func TestHooksContinueAfterSinkFailure(t *testing.T) {
	kw := &fakeKafka{err: errors.New("leader not available")}
	jobs := &fakeJobs{}
	hooks := NewHooks(nil, "", jobs, nil).WithKafka(kw)

	err := hooks.HandleReceiptRecorded(context.Background(), receiving.ReceiptRecordedEvent{ItemID: 7})
	require.Error(t, err)
	require.Contains(t, err.Error(), "kafka write")
	require.Len(t, jobs.events, 1)
}

func TestHooksRequireItem(t *testing.T) {
	require.Error(t, NewHooks(nil, "", nil, nil).HandleReceiptRecorded(context.Background(), receiving.ReceiptRecordedEvent{}))
}

func TestNewKafkaWriter(t *testing.T) {
	require.Nil(t, NewKafkaWriter(" , ", "receipts"))
	require.Nil(t, NewKafkaWriter("localhost:9092", ""))
	w := NewKafkaWriter("a:9092, b:9092", "receipts")
	require.NotNil(t, w)
	require.Equal(t, "receipts", w.Topic)
}
