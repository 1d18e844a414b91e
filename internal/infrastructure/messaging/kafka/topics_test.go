package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/testutil"
	apperrors "github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

type mockKafkaConn struct {
	created    []kafka.TopicConfig
	existing   map[string]bool
	createErr  error
	closeCalls int
}

func (m *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	var out []kafka.Partition
	for _, t := range topics {
		if m.existing[t] {
			out = append(out, kafka.Partition{Topic: t})
		}
	}
	if len(out) == 0 {
		return nil, kafka.UnknownTopicOrPartition
	}
	return out, nil
}

func (m *mockKafkaConn) Close() error { m.closeCalls++; return nil }

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopics(6, 3)
	require.Len(t, topics, 3)
	assert.Equal(t, TopicConformerJobs, topics[0].Name)
	assert.Equal(t, 6, topics[1].NumPartitions)
	assert.Equal(t, 1, topics[2].NumPartitions)
	assert.Equal(t, int64(30*24*3600*1000), topics[2].RetentionMs)
}

func TestEnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{existing: map[string]bool{TopicConformerJobs: true}}
	m := &TopicManager{conn: conn, logger: testutil.NewMockLogger()}

	require.NoError(t, m.EnsureTopics(context.Background(), DefaultTopics(2, 1)))
	require.Len(t, conn.created, 2)
	assert.Equal(t, TopicConformerResults, conn.created[0].Topic)
	assert.Equal(t, []kafka.ConfigEntry{{ConfigName: "retention.ms", ConfigValue: "604800000"}}, conn.created[0].ConfigEntries)

	require.NoError(t, m.Close())
	assert.Equal(t, 1, conn.closeCalls)
}

func TestCreateTopic_Errors(t *testing.T) {
	m := &TopicManager{conn: &mockKafkaConn{}, logger: testutil.NewMockLogger()}
	ctx := context.Background()
	assert.True(t, apperrors.IsCode(m.CreateTopic(ctx, TopicConfig{}), apperrors.CodeInvalidParam))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "x", NumPartitions: 1}))

	m.conn = &mockKafkaConn{createErr: kafka.TopicAlreadyExists}
	assert.NoError(t, m.CreateTopic(ctx, TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1}))

	m.conn = &mockKafkaConn{createErr: errors.New("not controller")}
	err := m.CreateTopic(ctx, TopicConfig{Name: "x", NumPartitions: 1, ReplicationFactor: 1, CleanupPolicy: "compact", MaxMessageBytes: 1024})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessagingError))
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	type payload struct {
		JobID string `json:"job_id"`
		Seed  int64  `json:"seed"`
	}
	env, err := NewEventEnvelope(EventJobRequested, "confgen-cli", payload{JobID: "j1", Seed: 7})
	require.NoError(t, err)
	env.TraceID = "trace"

	pm, err := env.ToMessage(TopicConformerJobs, "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", string(pm.Key))
	assert.Equal(t, EventJobRequested, pm.Headers["event_type"])
	assert.Equal(t, "trace", pm.Headers["trace_id"])

	decoded, err := MessageToEventEnvelope(&Message{Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	var p payload
	require.NoError(t, decoded.DecodePayload(&p))
	assert.Equal(t, payload{JobID: "j1", Seed: 7}, p)
}

func TestEventEnvelope_Invalid(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.Error(t, err)
	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSerialization))

	env := &EventEnvelope{EventID: "e", Payload: json.RawMessage("null")}
	var v map[string]any
	assert.Error(t, env.DecodePayload(&v))
}

//Personal.AI order the ending
