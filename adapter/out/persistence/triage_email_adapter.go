// Package persistence implements the repositories on PostgreSQL through sqlx.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// =============================================================================
// Email Adapter
// =============================================================================

// EmailAdapter implements out.EmailRepository.
type EmailAdapter struct {
	db *sqlx.DB
}

var _ out.EmailRepository = (*EmailAdapter)(nil)

func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

const emailColumns = `
	id, provider_id, user_id, subject, sender, body, received_at, processed,
	summary, priority, action, due_date, due_time, created_at`

type emailRow struct {
	ID         int64          `db:"id"`
	ProviderID string         `db:"provider_id"`
	UserID     uuid.UUID      `db:"user_id"`
	Subject    string         `db:"subject"`
	Sender     string         `db:"sender"`
	Body       string         `db:"body"`
	ReceivedAt time.Time      `db:"received_at"`
	Processed  bool           `db:"processed"`
	Summary    sql.NullString `db:"summary"`
	Priority   sql.NullString `db:"priority"`
	Action     sql.NullString `db:"action"`
	DueDate    sql.NullString `db:"due_date"`
	DueTime    sql.NullString `db:"due_time"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *emailRow) toDomain() *domain.EmailRecord {
	rec := &domain.EmailRecord{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		UserID:     r.UserID,
		Subject:    r.Subject,
		Sender:     r.Sender,
		Body:       r.Body,
		ReceivedAt: r.ReceivedAt,
		Processed:  r.Processed,
		Summary:    fromNull(r.Summary),
		Action:     fromNull(r.Action),
		DueDate:    fromNull(r.DueDate),
		DueTime:    fromNull(r.DueTime),
		CreatedAt:  r.CreatedAt,
	}
	if r.Priority.Valid {
		if p, ok := domain.ParsePriority(r.Priority.String); ok {
			rec.Priority = &p
		}
	}
	return rec
}

// UpsertNew inserts unless (user_id, provider_id) exists. Existing rows are
// left untouched.
func (a *EmailAdapter) UpsertNew(ctx context.Context, rec *domain.EmailRecord) (bool, int64, error) {
	query := `
		INSERT INTO emails (provider_id, user_id, subject, sender, body, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, provider_id) DO NOTHING
		RETURNING id`

	var id int64
	err := a.db.QueryRowxContext(ctx, query,
		rec.ProviderID, rec.UserID, rec.Subject, rec.Sender, rec.Body, rec.ReceivedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("insert email: %w", err)
	}
	rec.ID = id
	return true, id, nil
}

func (a *EmailAdapter) GetByID(ctx context.Context, id int64) (*domain.EmailRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM emails WHERE id = $1`, emailColumns)

	var row emailRow
	if err := a.db.QueryRowxContext(ctx, query, id).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (a *EmailAdapter) ListUnprocessed(ctx context.Context, limit int) ([]*domain.EmailRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM emails
		WHERE processed = FALSE
		ORDER BY received_at ASC, id ASC
		LIMIT $1`, emailColumns)
	return a.list(ctx, query, limit)
}

func (a *EmailAdapter) ListProcessedByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.EmailRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM emails
		WHERE user_id = $1 AND processed = TRUE
		ORDER BY created_at DESC
		LIMIT $2`, emailColumns)
	return a.list(ctx, query, userID, limit)
}

func (a *EmailAdapter) list(ctx context.Context, query string, args ...any) ([]*domain.EmailRecord, error) {
	var rows []emailRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	records := make([]*domain.EmailRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].toDomain()
	}
	return records, nil
}

// SaveResult stores the outcome and marks the row processed.
func (a *EmailAdapter) SaveResult(ctx context.Context, id int64, res *domain.ClassificationResult) error {
	query := `
		UPDATE emails SET
			processed = TRUE, summary = $1, priority = $2, action = $3,
			due_date = $4, due_time = $5, source = $6, updated_at = NOW()
		WHERE id = $7`

	result, err := a.db.ExecContext(ctx, query,
		res.Summary, res.Priority.String(), toNull(res.Action),
		toNull(res.DueDate), toNull(res.DueTime), string(res.Source), id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	return nil
}

// Claim is a single conditional UPDATE, so concurrent callers never both
// get the same id back.
func (a *EmailAdapter) Claim(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var claimed []int64
	err := a.db.SelectContext(ctx, &claimed, `
		UPDATE emails SET processed = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND processed = FALSE
		RETURNING id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (a *EmailAdapter) LatestReceivedAt(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	var latest sql.NullTime
	err := a.db.GetContext(ctx, &latest, `SELECT MAX(received_at) FROM emails WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
