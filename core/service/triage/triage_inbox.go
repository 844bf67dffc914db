package triage

import (
	"context"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/google/uuid"
)

// DashboardPageSize is the number of processed records shown per user.
const DashboardPageSize = 50

// InboxService reads processed records for the dashboard.
type InboxService struct {
	emails out.EmailRepository
}

// NewInboxService creates an InboxService.
func NewInboxService(emails out.EmailRepository) *InboxService {
	return &InboxService{emails: emails}
}

// ListProcessed returns the latest processed records and their stats.
func (s *InboxService) ListProcessed(ctx context.Context, userID uuid.UUID) ([]*domain.EmailRecord, domain.InboxStats, error) {
	records, err := s.emails.ListProcessedByUser(ctx, userID, DashboardPageSize)
	if err != nil {
		return nil, domain.InboxStats{}, fmt.Errorf("list processed: %w", err)
	}
	return records, domain.ComputeInboxStats(records), nil
}
