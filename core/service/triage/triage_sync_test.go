package triage

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"

	"github.com/google/uuid"
)

func newStubMailbox() *stubMail {
	received := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	return &stubMail{
		order: []string{"p1", "p2", "p3"},
		messages: map[string]*out.ProviderMessage{
			"p1": {ProviderID: "p1", Subject: "One", Sender: "a@x.com", Body: "first", ReceivedAt: received},
			"p2": {ProviderID: "p2", Subject: "Two", Sender: "b@x.com", Body: "second", ReceivedAt: received},
			"p3": {ProviderID: "p3", Subject: "Three", Sender: "c@x.com", Body: "third", ReceivedAt: received},
		},
	}
}

func TestSyncUserStoresNewMessagesOnce(t *testing.T) {
	acct := &domain.Account{UserID: uuid.New(), RefreshToken: "rt"}
	emails := newMemEmails()
	mail := newStubMailbox()
	pub := &recordingPublisher{}

	s := NewSyncService(&memAccounts{accounts: []*domain.Account{acct}}, emails, mail, pub, &SyncConfig{PublishJobs: true}, logger.Nop())
	s.now = func() time.Time { return pinnedNow }

	stored, err := s.SyncUser(context.Background(), acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 3 {
		t.Errorf("expected 3 stored, got %d", stored)
	}
	if !mail.since.Equal(pinnedNow.AddDate(0, 0, -7)) {
		t.Errorf("expected 7-day lookback, got %v", mail.since)
	}
	if mail.max != 50 {
		t.Errorf("expected max 50, got %d", mail.max)
	}
	if len(pub.ids) != 3 {
		t.Errorf("expected 3 published jobs, got %v", pub.ids)
	}

	stored, err = s.SyncUser(context.Background(), acct)
	if err != nil || stored != 0 {
		t.Errorf("expected re-sync to store nothing, got %d, %v", stored, err)
	}
	if len(pub.ids) != 3 {
		t.Errorf("expected no new jobs, got %v", pub.ids)
	}
}

func TestSyncUserUsesLatestReceivedAt(t *testing.T) {
	acct := &domain.Account{UserID: uuid.New(), RefreshToken: "rt"}
	latest := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	emails := newMemEmails()
	emails.latest = &latest
	mail := newStubMailbox()

	s := NewSyncService(&memAccounts{}, emails, mail, nil, nil, logger.Nop())
	if _, err := s.SyncUser(context.Background(), acct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mail.since.Equal(latest) {
		t.Errorf("expected since %v, got %v", latest, mail.since)
	}
}

func TestSyncUserSkipsFailedFetches(t *testing.T) {
	acct := &domain.Account{UserID: uuid.New(), RefreshToken: "rt"}
	mail := newStubMailbox()
	mail.failIDs = map[string]bool{"p2": true}

	s := NewSyncService(&memAccounts{}, newMemEmails(), mail, nil, nil, logger.Nop())
	stored, err := s.SyncUser(context.Background(), acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 2 {
		t.Errorf("expected 2 stored, got %d", stored)
	}
}

func TestSyncUserTruncatesBody(t *testing.T) {
	acct := &domain.Account{UserID: uuid.New(), RefreshToken: "rt"}
	long := make([]rune, domain.StoredBodyLimit+300)
	for i := range long {
		long[i] = 'é'
	}
	mail := &stubMail{
		order:    []string{"big"},
		messages: map[string]*out.ProviderMessage{"big": {ProviderID: "big", Subject: "Big", Body: string(long)}},
	}
	emails := newMemEmails()

	s := NewSyncService(&memAccounts{}, emails, mail, nil, nil, logger.Nop())
	if _, err := s.SyncUser(context.Background(), acct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(emails.rows[1].Body); n != domain.StoredBodyLimit {
		t.Errorf("expected body of %d runes, got %d", domain.StoredBodyLimit, n)
	}
}

func TestSyncAllOnlyUsersWithTokens(t *testing.T) {
	accounts := &memAccounts{accounts: []*domain.Account{
		{UserID: uuid.New(), RefreshToken: "rt-1"},
		{UserID: uuid.New()},
	}}

	s := NewSyncService(accounts, newMemEmails(), newStubMailbox(), nil, nil, logger.Nop())
	report, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Users != 1 || report.Stored != 3 || report.Failed != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}
