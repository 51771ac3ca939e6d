package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// BalanceCache implements domain.BalanceCache using one Redis hash per
// account. Each hash at key "balance:{account}" maps asset symbols to
// available amounts stored as decimal strings.
type BalanceCache struct {
	rdb *redis.Client
}

// NewBalanceCache creates a BalanceCache backed by the given Client.
func NewBalanceCache(c *Client) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying()}
}

var _ domain.BalanceCache = (*BalanceCache)(nil)

func balanceKey(account string) string {
	return "balance:" + account
}

// SetBalance stores the available amount of one asset for an account.
func (bc *BalanceCache) SetBalance(ctx context.Context, account, asset string, available decimal.Decimal) error {
	if available.IsNegative() {
		return fmt.Errorf("redis: set balance %s/%s: negative amount %s", account, asset, available)
	}
	if err := bc.rdb.HSet(ctx, balanceKey(account), asset, available.String()).Err(); err != nil {
		return fmt.Errorf("redis: set balance %s/%s: %w", account, asset, err)
	}
	return nil
}

// GetBalance retrieves the available amount of one asset for an account.
// It returns domain.ErrNotFound when the account or asset is unknown.
func (bc *BalanceCache) GetBalance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	val, err := bc.rdb.HGet(ctx, balanceKey(account), asset).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Decimal{}, domain.ErrNotFound
		}
		return decimal.Decimal{}, fmt.Errorf("redis: get balance %s/%s: %w", account, asset, err)
	}

	amount, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("redis: parse balance %s/%s: %w", account, asset, err)
	}
	return amount, nil
}

// GetBalances retrieves all asset balances for an account.
// It returns domain.ErrNotFound when the account has no stored balances.
func (bc *BalanceCache) GetBalances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	vals, err := bc.rdb.HGetAll(ctx, balanceKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get balances %s: %w", account, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	balances := make(map[string]decimal.Decimal, len(vals))
	for asset, raw := range vals {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("redis: parse balance %s/%s: %w", account, asset, err)
		}
		balances[asset] = amount
	}
	return balances, nil
}
