package out

import (
	"context"

	"github.com/google/uuid"
)

// JobPublisher enqueues single-message processing jobs.
type JobPublisher interface {
	PublishEmailProcess(ctx context.Context, emailID int64, userID uuid.UUID) error
}
