package postgres

import (
	"context"
	"errors"
	"fmt"

	"ledger-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceReadModel implements ports.BalanceReadModel on the account_balances
// table. Rows are derived state and can always be rebuilt from the log.
type BalanceReadModel struct {
	pool Pool
}

// NewBalanceReadModel creates a new BalanceReadModel.
func NewBalanceReadModel(pool Pool) *BalanceReadModel {
	return &BalanceReadModel{pool: pool}
}

// ApplyEvent folds one committed account event into the projection. Event
// types it does not project are ignored.
func (r *BalanceReadModel) ApplyEvent(ctx context.Context, event domain.Event) error {
	switch p := event.Payload.(type) {
	case *domain.MoneyCredited:
		return r.add(ctx, event.AggregateID, p.AssetCode, p.Amount)
	case *domain.MoneyDebited:
		return r.add(ctx, event.AggregateID, p.AssetCode, -p.Amount)
	default:
		return nil
	}
}

func (r *BalanceReadModel) add(ctx context.Context, accountID uuid.UUID, assetCode string, delta int64) error {
	query := `INSERT INTO account_balances (account_id, asset_code, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, asset_code) DO UPDATE
		SET balance = account_balances.balance + EXCLUDED.balance`

	if _, err := r.pool.Exec(ctx, query, accountID, assetCode, delta); err != nil {
		return fmt.Errorf("project balance: %w", err)
	}
	return nil
}

// GetBalances returns all asset balances of one account.
func (r *BalanceReadModel) GetBalances(ctx context.Context, accountID uuid.UUID) (map[string]int64, error) {
	query := `SELECT asset_code, balance FROM account_balances WHERE account_id = $1`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]int64)
	for rows.Next() {
		var asset string
		var balance int64
		if err := rows.Scan(&asset, &balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances[asset] = balance
	}
	return balances, rows.Err()
}

// GetBalance returns one asset balance, zero when the row does not exist.
func (r *BalanceReadModel) GetBalance(ctx context.Context, accountID uuid.UUID, assetCode string) (int64, error) {
	query := `SELECT balance FROM account_balances WHERE account_id = $1 AND asset_code = $2`

	var balance int64
	err := r.pool.QueryRow(ctx, query, accountID, assetCode).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Reset clears the projection ahead of a rebuild.
func (r *BalanceReadModel) Reset(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `TRUNCATE account_balances`); err != nil {
		return fmt.Errorf("reset balances: %w", err)
	}
	return nil
}
