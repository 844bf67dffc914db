package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Producer publishes email processing jobs.
type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// PublishEmailProcess enqueues one stored email for classification.
func (p *Producer) PublishEmailProcess(ctx context.Context, emailID int64, userID uuid.UUID) error {
	job, err := newEmailProcessJob(emailID, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = p.stream.Publish(ctx, StreamEmailProcessing, job)
	return err
}
