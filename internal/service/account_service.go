package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// AccountService serves per-account available balances.
type AccountService struct {
	balances domain.BalanceCache
	logger   *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(balances domain.BalanceCache, logger *slog.Logger) *AccountService {
	return &AccountService{
		balances: balances,
		logger:   logger,
	}
}

// Balances returns every known asset balance for an account.
func (s *AccountService) Balances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	bal, err := s.balances.GetBalances(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("account_service: balances %q: %w", account, err)
	}
	return bal, nil
}

// SetBalance records the available amount of one asset for an account. Used
// by the balance sync endpoint and test fixtures.
func (s *AccountService) SetBalance(ctx context.Context, account, asset string, available decimal.Decimal) error {
	if err := s.balances.SetBalance(ctx, account, asset, available); err != nil {
		return fmt.Errorf("account_service: set balance %q/%q: %w", account, asset, err)
	}
	return nil
}
