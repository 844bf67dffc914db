package triage

import (
	"context"
	"testing"

	"triage_server/core/domain"

	"github.com/google/uuid"
)

func TestInboxListProcessed(t *testing.T) {
	high := domain.PriorityHigh
	emails := newMemEmails()
	emails.processed = []*domain.EmailRecord{
		{ID: 1, Priority: &high, Processed: true},
		{ID: 2, Processed: true},
	}

	records, stats, err := NewInboxService(emails).ListProcessed(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
	if stats.Total != 2 || stats.High != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestLinkAccount(t *testing.T) {
	accounts := &memAccounts{}
	s := NewAccountService(accounts)
	user := uuid.New()

	if err := s.LinkAccount(context.Background(), &domain.Account{UserID: user, Email: " me@x.com ", RefreshToken: " rt "}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := accounts.GetByUser(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "me@x.com" || got.RefreshToken != "rt" {
		t.Errorf("expected trimmed account, got %+v", got)
	}

	if err := s.LinkAccount(context.Background(), &domain.Account{UserID: user}); err == nil {
		t.Error("expected error for missing refresh token")
	}
}
