package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
)

// mockKafkaReader serves queued messages and then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	return nil
}

func (m *mockKafkaReader) Close() error             { m.closed = true; return nil }
func (m *mockKafkaReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{} }

func (m *mockKafkaReader) commits() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.committed...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "confgen-workers",
		Topics:  []string{TopicConformerJobs},
		Retry:   RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond, DeadLetterTopic: TopicConformerDeadLetter},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(testConsumerConfig()))

	for name, mutate := range map[string]func(*ConsumerConfig){
		"no brokers":     func(c *ConsumerConfig) { c.Brokers = nil },
		"no group":       func(c *ConsumerConfig) { c.GroupID = "" },
		"no topics":      func(c *ConsumerConfig) { c.Topics = nil },
		"bad offset":     func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" },
		"neg retries":    func(c *ConsumerConfig) { c.Retry.MaxRetries = -1 },
		"tls without ca": func(c *ConsumerConfig) { c.Security.TLSEnabled = true },
	} {
		cfg := testConsumerConfig()
		mutate(&cfg)
		assert.Error(t, ValidateConsumerConfig(cfg), name)
	}
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: TopicConformerJobs, Offset: 7, HighWaterMark: 9, Value: []byte("job"), Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t1")}}},
		{Topic: "unknown", Offset: 8, HighWaterMark: 9, Value: []byte("x")},
	}}
	c := newConsumerWithReader(reader, testConsumerConfig(), nil, testutil.NewMockLogger())

	handled := make(chan *Message, 1)
	c.Subscribe(TopicConformerJobs, func(_ context.Context, msg *Message) error {
		handled <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	select {
	case msg := <-handled:
		assert.Equal(t, "job", string(msg.Value))
		assert.Equal(t, "t1", msg.Headers["trace_id"])
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.Equal(t, []int64{7, 8}, reader.commits())
	assert.Equal(t, int64(2), c.Metrics().MessagesConsumed.Load())
	assert.Equal(t, int64(1), c.Metrics().MessagesProcessed.Load())
	assert.Equal(t, int64(0), c.Metrics().Lag.Load())
}

func TestProcessMessage_RetrySucceeds(t *testing.T) {
	c := newConsumerWithReader(&mockKafkaReader{}, testConsumerConfig(), nil, testutil.NewMockLogger())
	var attempts atomic.Int32
	ok := c.processMessage(context.Background(), &Message{}, func(context.Context, *Message) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, int64(1), c.Metrics().MessagesRetried.Load())
}

func TestProcessMessage_DeadLetters(t *testing.T) {
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(&mockKafkaReader{}, testConsumerConfig(), dlq, testutil.NewMockLogger())
	var attempts atomic.Int32
	msg := &Message{Topic: TopicConformerJobs, Key: []byte("job-9"), Value: []byte("bad"), Headers: map[string]string{"a": "b"}}

	ok := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		attempts.Add(1)
		return errors.New("invalid molfile")
	})
	assert.False(t, ok)
	assert.Equal(t, int32(3), attempts.Load())
	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, TopicConformerDeadLetter, dl.Topic)
	assert.Equal(t, "job-9", string(dl.Key))
	assert.Equal(t, TopicConformerJobs, dl.Headers["original_topic"])
	assert.Equal(t, "invalid molfile", dl.Headers["error_message"])
	assert.Equal(t, "b", dl.Headers["a"])
	assert.NotContains(t, msg.Headers, "original_topic")
	assert.Equal(t, int64(1), c.Metrics().MessagesDeadLettered.Load())
}

func TestConsumer_RunStopsOnCancel(t *testing.T) {
	c := newConsumerWithReader(&mockKafkaReader{}, testConsumerConfig(), nil, testutil.NewMockLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

//Personal.AI order the ending
