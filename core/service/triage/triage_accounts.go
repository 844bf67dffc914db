package triage

import (
	"context"
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

// AccountService stores mailbox owners and their offline tokens.
type AccountService struct {
	accounts out.AccountRepository
}

func NewAccountService(accounts out.AccountRepository) *AccountService {
	return &AccountService{accounts: accounts}
}

// LinkAccount creates or replaces the owner's account. The refresh token is
// required; the sync scheduler skips accounts without one.
func (s *AccountService) LinkAccount(ctx context.Context, acct *domain.Account) error {
	acct.Email = strings.TrimSpace(acct.Email)
	acct.RefreshToken = strings.TrimSpace(acct.RefreshToken)
	if acct.RefreshToken == "" {
		return apperr.MissingField("refreshToken")
	}
	if err := s.accounts.Save(ctx, acct); err != nil {
		return apperr.DatabaseError("save account", err)
	}
	return nil
}
