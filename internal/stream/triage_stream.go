// Package stream carries single-message processing jobs over Redis streams.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StreamEmailProcessing = "email:processing"
	JobEmailProcess       = "email.process"

	DefaultGroup = "triage-workers"
)

// Job is the envelope stored under the "data" field of a stream entry.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EmailProcessPayload identifies a stored email to classify.
type EmailProcessPayload struct {
	EmailID int64     `json:"email_id"`
	UserID  uuid.UUID `json:"user_id"`
}

// RedisStream wraps a go-redis client for one consumer group.
type RedisStream struct {
	client *redis.Client
	group  string
}

func NewRedisStream(client *redis.Client, group string) *RedisStream {
	if group == "" {
		group = DefaultGroup
	}
	return &RedisStream{client: client, group: group}
}

// CreateGroup creates the consumer group and stream if missing.
func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// Publish appends a job and returns the entry id.
func (s *RedisStream) Publish(ctx context.Context, stream string, job *Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": data},
	}).Result()
}

func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

// Pending returns the number of delivered but unacknowledged entries.
func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

func newEmailProcessJob(emailID int64, userID uuid.UUID, now time.Time) (*Job, error) {
	payload, err := json.Marshal(EmailProcessPayload{EmailID: emailID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:        uuid.NewString(),
		Type:      JobEmailProcess,
		Payload:   payload,
		CreatedAt: now,
	}, nil
}

// decodeEmailProcess parses a stream entry's data field.
func decodeEmailProcess(data []byte) (*EmailProcessPayload, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	if job.Type != JobEmailProcess {
		return nil, fmt.Errorf("unknown job type %q", job.Type)
	}

	var p EmailProcessPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.EmailID <= 0 {
		return nil, fmt.Errorf("invalid email id %d", p.EmailID)
	}
	return &p, nil
}
