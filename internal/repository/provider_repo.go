package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/models"
	"github.com/jackc/pgx/v5"
)

const providerColumns = `id, wallet_address, provider_name, active, mining_points,
		allocated_storage, estimated_reward, created_at`

// ProviderRepository reads and writes wallet_addresses
type ProviderRepository struct {
	db DBTX
}

// NewProviderRepository creates a provider repository
func NewProviderRepository(db DBTX) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetByWallet finds the provider registered for a wallet address. The
// comparison is case-insensitive; exactly one row must match.
func (r *ProviderRepository) GetByWallet(ctx context.Context, walletAddress string) (*models.ProviderRow, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM wallet_addresses
		WHERE lower(wallet_address) = $1
		LIMIT 2
	`
	rows, err := r.db.Query(ctx, query, strings.ToLower(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("query wallet_addresses: %w", err)
	}
	defer rows.Close()
	return r.scanExactlyOne(rows)
}

// GetByUniqueID finds a provider in the legacy providers table.
//
// Deprecated: providers are keyed by wallet address; use GetByWallet.
func (r *ProviderRepository) GetByUniqueID(ctx context.Context, uniqueID string) (*models.ProviderRow, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE unique_id = $1
		LIMIT 2
	`
	rows, err := r.db.Query(ctx, query, uniqueID)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()
	return r.scanExactlyOne(rows)
}

// UpdateByWallet applies a partial update; nil fields keep their value.
func (r *ProviderRepository) UpdateByWallet(ctx context.Context, walletAddress string, update *models.ProviderUpdate) (*models.ProviderRow, error) {
	query := `
		UPDATE wallet_addresses SET
			active = COALESCE($1, active),
			mining_points = COALESCE($2, mining_points)
		WHERE lower(wallet_address) = $3
		RETURNING ` + providerColumns

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	rows, err := tx.Query(ctx, query, update.Active, update.MiningPoints, strings.ToLower(walletAddress))
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("update wallet_addresses: %w", err)
	}
	row, err := r.scanExactlyOne(rows)
	rows.Close()
	if err != nil {
		// More than one match must not be written
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return row, nil
}

func (r *ProviderRepository) scanExactlyOne(rows pgx.Rows) (*models.ProviderRow, error) {
	var results []*models.ProviderRow
	for rows.Next() {
		p := &models.ProviderRow{}
		err := rows.Scan(
			&p.ID, &p.WalletAddress, &p.ProviderName, &p.Active, &p.MiningPoints,
			&p.AllocatedStorage, &p.EstimatedReward, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet_addresses row: %w: %w", gateway.ErrMalformedRow, err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read wallet_addresses rows: %w", err)
	}
	return gateway.ExactlyOne(results)
}
