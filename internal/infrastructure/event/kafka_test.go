package event

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { w.closed = true; return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaPublisher_KeysByOrderAndSetsHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "submit")
	defer span.End()

	w := &fakeWriter{}
	pub := NewKafkaPublisher(w, NewReceptionEventSerializer(), zap.NewNop())
	e := receptionCreated(t)

	require.NoError(t, pub.Publish(ctx, e))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, e.OrderID.String(), string(msg.Key))

	headers := headerCarrier(msg.Headers)
	assert.Equal(t, receiving.EventTypeReceptionCreated, headers.Get(HeaderEventType))
	assert.Equal(t, e.DedupKey(), headers.Get(HeaderDedupKey))
	assert.NotEmpty(t, headers.Get("traceparent"))

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	pub := NewKafkaPublisher(w, NewReceptionEventSerializer(), zap.NewNop())

	err := pub.Publish(context.Background(), receptionCreated(t))
	assert.ErrorContains(t, err, "broker down")
	assert.NoError(t, pub.Publish(context.Background()))
}

func TestNewKafkaWriter_Settings(t *testing.T) {
	w := NewKafkaWriter(kafkaConfig())
	assert.Equal(t, "reception-events", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}

func TestKafkaConsumer_DeliversAndCommits(t *testing.T) {
	s := NewReceptionEventSerializer()
	good, err := s.Encode(receptionCreated(t))
	require.NoError(t, err)

	reader := newFakeReader(
		kafka.Message{Offset: 1, Value: []byte("not json")},
		kafka.Message{Offset: 2, Value: good},
	)
	handler := &recordingHandler{}
	consumer := NewKafkaConsumer(reader, s, handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, handler.count())
	assert.Len(t, reader.committed, 2, "undecodable messages are committed too")
}

func TestKafkaConsumer_RetriesFailedHandler(t *testing.T) {
	s := NewReceptionEventSerializer()
	good, err := s.Encode(receptionCreated(t))
	require.NoError(t, err)

	reader := newFakeReader(kafka.Message{Offset: 1, Value: good})
	handler := &flakyHandler{failures: 2}
	consumer := NewKafkaConsumer(reader, s, handler, zap.NewNop())
	consumer.retryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	<-reader.drained
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 3, handler.calls)
}

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Handle(context.Context, shared.DomainEvent) error {
	h.calls++
	if h.calls <= h.failures {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (h *flakyHandler) EventTypes() []string { return nil }

func kafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		Topic:        "reception-events",
		BatchTimeout: 10 * time.Millisecond,
	}
}
