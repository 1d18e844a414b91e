package kafka

import (
	"context"
	"time"
)

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish. Partition is ignored unless the
// writer uses a manual balancer.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// MessageHandler processes one message. A non-nil error triggers retries and
// eventually dead-lettering.
type MessageHandler func(ctx context.Context, msg *Message) error

// BatchItemError reports one failed record of a batch. Index is -1 when the
// whole batch failed.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// Err returns the first record error, or nil when every record was written.
func (r *BatchPublishResult) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].Error
}

// BatchPublisher writes several records in one call.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error)
}

//Personal.AI order the ending
