package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/crypto"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// AccountAdapter implements out.AccountRepository. Refresh tokens are sealed
// with the cipher when one is configured; rows written before encryption was
// enabled are read back as plaintext.
type AccountAdapter struct {
	db     *sqlx.DB
	cipher *crypto.TokenCipher
}

var _ out.AccountRepository = (*AccountAdapter)(nil)

// NewAccountAdapter creates the adapter. cipher may be nil.
func NewAccountAdapter(db *sqlx.DB, cipher *crypto.TokenCipher) *AccountAdapter {
	return &AccountAdapter{db: db, cipher: cipher}
}

type accountRow struct {
	UserID       uuid.UUID `db:"user_id"`
	Email        string    `db:"email"`
	RefreshToken string    `db:"refresh_token"`
}

func (a *AccountAdapter) ListWithRefreshToken(ctx context.Context) ([]*domain.Account, error) {
	var rows []accountRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT user_id, email, refresh_token FROM accounts
		WHERE refresh_token <> ''
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, 0, len(rows))
	for _, row := range rows {
		acct, err := a.toDomain(row)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func (a *AccountAdapter) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	var row accountRow
	err := a.db.GetContext(ctx, &row,
		`SELECT user_id, email, refresh_token FROM accounts WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a.toDomain(row)
}

func (a *AccountAdapter) Save(ctx context.Context, acct *domain.Account) error {
	token := acct.RefreshToken
	if a.cipher != nil {
		sealed, err := a.cipher.Encrypt(token)
		if err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
		token = sealed
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, email, refresh_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			refresh_token = EXCLUDED.refresh_token,
			updated_at = NOW()`,
		acct.UserID, acct.Email, token)
	return err
}

func (a *AccountAdapter) toDomain(row accountRow) (*domain.Account, error) {
	token, err := a.openToken(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", row.UserID, err)
	}
	return &domain.Account{UserID: row.UserID, Email: row.Email, RefreshToken: token}, nil
}

func (a *AccountAdapter) openToken(stored string) (string, error) {
	if a.cipher == nil {
		return stored, nil
	}
	plain, err := a.cipher.Decrypt(stored)
	if errors.Is(err, crypto.ErrInvalidCiphertext) {
		return stored, nil
	}
	return plain, err
}
