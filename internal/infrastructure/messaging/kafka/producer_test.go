package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
	apperrors "github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(msgs ...kafka.Message) error
	closed    bool
}

func (m *mockKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeFunc != nil {
		if err := m.writeFunc(msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error             { m.closed = true; return nil }
func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func (m *mockKafkaWriter) messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.written...)
}

func newTestProducer(w WriterInterface) *Producer {
	return newProducerWithWriter(w, ProducerConfig{Brokers: []string{"localhost:9092"}, MaxMessageBytes: 64}, testutil.NewMockLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b:9092"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN"},
	}))
}

func TestSecurityConfig_Mechanism(t *testing.T) {
	for _, mech := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		m, err := SecurityConfig{SASLEnabled: true, SASLMechanism: mech, SASLUsername: "u", SASLPassword: "p"}.mechanism()
		require.NoError(t, err, mech)
		assert.Equal(t, mech, m.Name())
	}
	_, err := SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	m, err := SecurityConfig{}.mechanism()
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = SecurityConfig{TLSEnabled: true, TLSCAPath: "/nonexistent/ca.pem"}.tlsConfig()
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessagingError))
}

func TestPublish(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	msg := &ProducerMessage{Topic: TopicConformerResults, Key: []byte("job-1"), Value: []byte(`{"ok":true}`), Headers: map[string]string{"h": "v"}}

	require.NoError(t, p.Publish(context.Background(), msg))
	got := w.messages()
	require.Len(t, got, 1)
	assert.Equal(t, TopicConformerResults, got[0].Topic)
	assert.Equal(t, "job-1", string(got[0].Key))
	assert.Equal(t, []kafka.Header{{Key: "h", Value: []byte("v")}}, got[0].Headers)
	assert.False(t, got[0].Time.IsZero())

	sent, failed, bytes := p.Metrics()
	assert.Equal(t, int64(1), sent)
	assert.Zero(t, failed)
	assert.Equal(t, int64(len(msg.Value)), bytes)
}

func TestPublish_Rejected(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Value: []byte("x")}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t"}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t", Value: make([]byte, 65)}))
}

func TestPublish_WriterFailure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{writeFunc: func(...kafka.Message) error { return errors.New("broker down") }})
	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessagingError))
	_, failed, _ := p.Metrics()
	assert.Equal(t, int64(1), failed)
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(msgs ...kafka.Message) error {
		return kafka.WriteErrors{nil, errors.New("leader not available"), nil}
	}}
	p := newTestProducer(w)
	msgs := []*ProducerMessage{
		{Topic: "a", Value: []byte("1")},
		{Topic: "b", Value: []byte("2")},
		{Topic: "c", Value: []byte("3")},
	}
	res, err := p.PublishBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "b", res.Errors[0].Topic)
	assert.Equal(t, res.Errors[0].Error, res.Err())
	assert.NoError(t, (&BatchPublishResult{Succeeded: 2}).Err())
	assert.NoError(t, (*BatchPublishResult)(nil).Err())

	_, err = p.PublishBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestProducerClose(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newTestProducer(w)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")}), ErrProducerClosed)
}

//Personal.AI order the ending
