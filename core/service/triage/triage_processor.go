package triage

import (
	"context"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/rs/zerolog"
)

// ProcessorConfig configures the stored-message processor.
type ProcessorConfig struct {
	BatchSize int // unprocessed records per poll (default 50)
}

// DefaultProcessorConfig returns defaults.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{BatchSize: 50}
}

// Processor classifies stored messages, creates calendar events for
// scheduled meetings and persists outcomes.
type Processor struct {
	emails   out.EmailRepository
	accounts out.AccountRepository
	calendar out.CalendarProvider
	governor *Governor
	config   *ProcessorConfig
	log      zerolog.Logger
}

// NewProcessor creates a processor. calendar may be nil to disable events.
func NewProcessor(emails out.EmailRepository, accounts out.AccountRepository, calendar out.CalendarProvider, governor *Governor, config *ProcessorConfig, log zerolog.Logger) *Processor {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultProcessorConfig().BatchSize
	}
	return &Processor{
		emails:   emails,
		accounts: accounts,
		calendar: calendar,
		governor: governor,
		config:   config,
		log:      log.With().Str("component", "triage_processor").Logger(),
	}
}

// ProcessPending handles one page of unprocessed records, oldest first, and
// returns how many were handled. Every listed record ends up processed,
// including ones whose outcome could not be saved.
func (p *Processor) ProcessPending(ctx context.Context) (int, error) {
	records, err := p.emails.ListUnprocessed(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	msgs := make([]*domain.InboundMessage, len(records))
	for i, rec := range records {
		msgs[i] = rec.Message()
	}

	results := p.governor.ProcessBatch(ctx, msgs, func(done, total int) {
		p.log.Debug().Int("done", done).Int("total", total).Msg("batch progress")
	})

	for i, rec := range records {
		p.finish(ctx, rec, results[i])
	}

	p.log.Info().Int("count", len(records)).Msg("processed pending emails")
	return len(records), nil
}

// ProcessOne handles a single stored record. Already processed records are
// skipped.
func (p *Processor) ProcessOne(ctx context.Context, emailID int64) error {
	rec, err := p.emails.GetByID(ctx, emailID)
	if err != nil {
		return fmt.Errorf("get email %d: %w", emailID, err)
	}
	if rec.Processed {
		p.log.Debug().Int64("email_id", emailID).Msg("email already processed")
		return nil
	}

	res := p.governor.Classify(ctx, rec.Message())
	p.finish(ctx, rec, res)
	return nil
}

// finish claims the row before any side effect. The poller and the stream
// consumer can both reach a fresh row; only the claimant writes the result
// and creates the calendar event.
func (p *Processor) finish(ctx context.Context, rec *domain.EmailRecord, res *domain.ClassificationResult) {
	claimed, err := p.emails.Claim(ctx, []int64{rec.ID})
	if err != nil {
		p.log.Error().Err(err).Int64("email_id", rec.ID).Msg("failed to claim email")
		return
	}
	if len(claimed) == 0 {
		p.log.Debug().Int64("email_id", rec.ID).Msg("email claimed by another worker")
		return
	}

	if p.calendar != nil && res.HasSchedule() && p.governor.IsMeetingEmail(rec.Subject, rec.Body) {
		p.scheduleMeeting(ctx, rec, res)
	}

	if err := p.emails.SaveResult(ctx, rec.ID, res); err != nil {
		// the row stays processed without a result
		p.log.Error().Err(err).Int64("email_id", rec.ID).Msg("failed to save result")
		return
	}
	rec.Apply(res)
}

func (p *Processor) scheduleMeeting(ctx context.Context, rec *domain.EmailRecord, res *domain.ClassificationResult) {
	account, err := p.accounts.GetByUser(ctx, rec.UserID)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", rec.UserID.String()).Msg("account lookup failed, skipping calendar event")
		return
	}
	if account == nil || account.RefreshToken == "" {
		return
	}

	link, err := p.calendar.CreateEvent(ctx, account.RefreshToken, &domain.CalendarEvent{
		Summary:     rec.Subject,
		Description: res.Summary,
		DueDate:     *res.DueDate,
		DueTime:     *res.DueTime,
	})
	if err != nil {
		p.log.Warn().Err(err).Int64("email_id", rec.ID).Msg("failed to create calendar event")
		return
	}
	p.log.Info().Int64("email_id", rec.ID).Str("link", link).Msg("calendar event created")
}
