package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/models"
	"github.com/jackc/pgx/v5"
)

const miningColumns = `id, provider_id, mining_points, mining_time, allocated_storage, updated_at`

// MiningRepository reads and writes mining_data
type MiningRepository struct {
	db DBTX
}

// NewMiningRepository creates a mining repository
func NewMiningRepository(db DBTX) *MiningRepository {
	return &MiningRepository{db: db}
}

// GetByProviderID returns the single mining record of a provider
func (r *MiningRepository) GetByProviderID(ctx context.Context, providerID int64) (*models.MiningRecordRow, error) {
	query := `
		SELECT ` + miningColumns + `
		FROM mining_data
		WHERE provider_id = $1
		LIMIT 2
	`
	rows, err := r.db.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("query mining_data: %w", err)
	}
	defer rows.Close()
	return r.scanExactlyOne(rows)
}

// UpdateByProviderID writes a toggle update. With update.ExpectedUpdatedAt
// set, the row is only written if its updated_at still matches.
func (r *MiningRepository) UpdateByProviderID(ctx context.Context, providerID int64, update *models.MiningUpdate) (*models.MiningRecordRow, error) {
	query := `
		UPDATE mining_data SET
			mining_points = $1,
			mining_time = $2,
			updated_at = $3,
			allocated_storage = $4
		WHERE provider_id = $5
		  AND ($6::timestamptz IS NULL OR updated_at = $6)
		RETURNING ` + miningColumns

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	row, err := r.updateInTx(ctx, tx, query, providerID, update)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return row, nil
}

func (r *MiningRepository) updateInTx(ctx context.Context, tx pgx.Tx, query string, providerID int64, update *models.MiningUpdate) (*models.MiningRecordRow, error) {
	rows, err := tx.Query(ctx, query,
		update.MiningPoints, update.MiningTime, update.UpdatedAt, update.AllocatedStorage,
		providerID, update.ExpectedUpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update mining_data: %w", err)
	}
	row, err := r.scanExactlyOne(rows)
	rows.Close()

	if errors.Is(err, gateway.ErrNotFound) && update.ExpectedUpdatedAt != nil {
		// Nothing matched: either the record is gone or someone else wrote it
		var exists bool
		existsQuery := `SELECT EXISTS (SELECT 1 FROM mining_data WHERE provider_id = $1)`
		if qerr := tx.QueryRow(ctx, existsQuery, providerID).Scan(&exists); qerr != nil {
			return nil, fmt.Errorf("check mining_data: %w", qerr)
		}
		if exists {
			return nil, gateway.ErrConflict
		}
	}
	return row, err
}

func (r *MiningRepository) scanExactlyOne(rows pgx.Rows) (*models.MiningRecordRow, error) {
	var results []*models.MiningRecordRow
	for rows.Next() {
		m := &models.MiningRecordRow{}
		err := rows.Scan(
			&m.ID, &m.ProviderID, &m.MiningPoints, &m.MiningTime, &m.AllocatedStorage, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan mining_data row: %w: %w", gateway.ErrMalformedRow, err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read mining_data rows: %w", err)
	}
	return gateway.ExactlyOne(results)
}
