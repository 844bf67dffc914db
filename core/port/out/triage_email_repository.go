package out

import (
	"context"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// EmailRepository persists fetched messages and their triage outcome.
type EmailRepository interface {
	// UpsertNew inserts the record unless (user, provider id) already exists.
	// It reports whether a row was inserted and the row id.
	UpsertNew(ctx context.Context, rec *domain.EmailRecord) (bool, int64, error)
	GetByID(ctx context.Context, id int64) (*domain.EmailRecord, error)
	// ListUnprocessed returns up to limit unprocessed records, oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.EmailRecord, error)
	SaveResult(ctx context.Context, id int64, result *domain.ClassificationResult) error
	// Claim flips processed on for the given ids and returns the ones this
	// call changed. Ids already processed by another worker are left out.
	Claim(ctx context.Context, ids []int64) ([]int64, error)
	// LatestReceivedAt returns nil when the user has no stored messages.
	LatestReceivedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error)
	ListProcessedByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.EmailRecord, error)
}

// AccountRepository reads mailbox owners.
type AccountRepository interface {
	ListWithRefreshToken(ctx context.Context) ([]*domain.Account, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	// Save creates or replaces the account for its user.
	Save(ctx context.Context, acct *domain.Account) error
}
