package in

import (
	"context"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

// TriageUseCase classifies messages.
type TriageUseCase interface {
	// Classify never fails; degraded paths still return a valid result.
	Classify(ctx context.Context, msg *domain.InboundMessage) *domain.ClassificationResult
	// ProcessBatch returns one result per message, in input order.
	ProcessBatch(ctx context.Context, msgs []*domain.InboundMessage, onProgress func(done, total int)) []*domain.ClassificationResult
}

// InboxUseCase serves processed messages to the dashboard.
type InboxUseCase interface {
	ListProcessed(ctx context.Context, userID uuid.UUID) ([]*domain.EmailRecord, domain.InboxStats, error)
}

// AccountUseCase links mailboxes for syncing.
type AccountUseCase interface {
	LinkAccount(ctx context.Context, acct *domain.Account) error
}
