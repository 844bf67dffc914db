package triage

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/rs/zerolog"
)

// SyncConfig configures mailbox fetching.
type SyncConfig struct {
	LookbackDays int  // first sync window (default 7)
	MaxResults   int  // ids listed per user per run (default 50)
	PublishJobs  bool // enqueue a processing job per new record
}

// DefaultSyncConfig returns defaults.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{LookbackDays: 7, MaxResults: 50}
}

// SyncReport summarises one SyncAll run.
type SyncReport struct {
	Users  int
	Failed int
	Stored int
}

// SyncService copies new provider messages into the email repository.
type SyncService struct {
	accounts  out.AccountRepository
	emails    out.EmailRepository
	mail      out.MailProvider
	publisher out.JobPublisher
	config    *SyncConfig
	now       func() time.Time
	log       zerolog.Logger
}

// NewSyncService creates a sync service. publisher may be nil.
func NewSyncService(accounts out.AccountRepository, emails out.EmailRepository, mail out.MailProvider, publisher out.JobPublisher, config *SyncConfig, log zerolog.Logger) *SyncService {
	if config == nil {
		config = DefaultSyncConfig()
	}
	def := DefaultSyncConfig()
	if config.LookbackDays <= 0 {
		config.LookbackDays = def.LookbackDays
	}
	if config.MaxResults <= 0 {
		config.MaxResults = def.MaxResults
	}
	return &SyncService{
		accounts:  accounts,
		emails:    emails,
		mail:      mail,
		publisher: publisher,
		config:    config,
		now:       time.Now,
		log:       log.With().Str("component", "triage_sync").Logger(),
	}
}

// SyncAll syncs every account with a refresh token. Per-user failures are
// logged and counted; only listing accounts can fail the run.
func (s *SyncService) SyncAll(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	accounts, err := s.accounts.ListWithRefreshToken(ctx)
	if err != nil {
		return report, fmt.Errorf("list accounts: %w", err)
	}

	for _, acct := range accounts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Users++
		stored, err := s.SyncUser(ctx, acct)
		report.Stored += stored
		if err != nil {
			report.Failed++
			s.log.Error().Err(err).Str("user_id", acct.UserID.String()).Msg("mailbox sync failed")
		}
	}
	return report, nil
}

// SyncUser fetches messages newer than the latest stored one (or the
// lookback window) and stores those not seen before.
func (s *SyncService) SyncUser(ctx context.Context, acct *domain.Account) (int, error) {
	since, err := s.since(ctx, acct)
	if err != nil {
		return 0, err
	}

	ids, err := s.mail.ListMessageIDs(ctx, acct.RefreshToken, since, s.config.MaxResults)
	if err != nil {
		return 0, fmt.Errorf("list messages: %w", err)
	}

	stored := 0
	for _, id := range ids {
		msg, err := s.mail.GetMessage(ctx, acct.RefreshToken, id)
		if err != nil {
			s.log.Warn().Err(err).Str("provider_id", id).Msg("failed to fetch message")
			continue
		}

		rec := &domain.EmailRecord{
			ProviderID: msg.ProviderID,
			UserID:     acct.UserID,
			Subject:    msg.Subject,
			Sender:     msg.Sender,
			Body:       truncateRunes(msg.Body, domain.StoredBodyLimit),
			ReceivedAt: msg.ReceivedAt,
		}
		inserted, emailID, err := s.emails.UpsertNew(ctx, rec)
		if err != nil {
			s.log.Warn().Err(err).Str("provider_id", id).Msg("failed to store message")
			continue
		}
		if !inserted {
			continue
		}
		stored++

		if s.config.PublishJobs && s.publisher != nil {
			if err := s.publisher.PublishEmailProcess(ctx, emailID, acct.UserID); err != nil {
				// the poller still picks the record up
				s.log.Warn().Err(err).Int64("email_id", emailID).Msg("failed to publish processing job")
			}
		}
	}

	s.log.Info().
		Str("user_id", acct.UserID.String()).
		Int("listed", len(ids)).
		Int("stored", stored).
		Msg("mailbox synced")
	return stored, nil
}

func (s *SyncService) since(ctx context.Context, acct *domain.Account) (time.Time, error) {
	latest, err := s.emails.LatestReceivedAt(ctx, acct.UserID)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest received: %w", err)
	}
	if latest != nil {
		return *latest, nil
	}
	return s.now().AddDate(0, 0, -s.config.LookbackDays), nil
}
