package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/writdev-alt/easylink-webhook-sub000/internal/infrastructure/kafka"
)

// Job is one signed delivery handed to the outbound queue.
type Job struct {
	ID         string          `json:"id"`
	TrxID      string          `json:"trx_id"`
	URL        string          `json:"url"`
	Event      string          `json:"event"`
	Body       json.RawMessage `json:"body"`
	Signature  string          `json:"signature"`
	Manual     bool            `json:"manual"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// KafkaQueue publishes jobs keyed by trx_id, so deliveries for one
// transaction stay ordered within a partition.
type KafkaQueue struct {
	producer kafka.KafkaProducer
	topic    string
}

func NewKafkaQueue(producer kafka.KafkaProducer, topic string) *KafkaQueue {
	return &KafkaQueue{producer: producer, topic: topic}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode webhook job: %w", err)
	}
	return q.producer.Send(ctx, q.topic, job.TrxID, value)
}
