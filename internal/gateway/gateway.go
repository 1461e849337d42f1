// Package gateway defines the boundary to the external relational store that
// holds providers (wallet_addresses) and their mining records (mining_data).
//
// Implementations issue exactly one request per call. They do not retry,
// rate-limit or cache; store errors are returned wrapped so callers can
// inspect them with errors.Is.
package gateway

import (
	"context"
	"errors"

	"github.com/aai-storage/mining-dashboard/internal/models"
)

var (
	// ErrNotFound is returned when a lookup expected one row and found none.
	ErrNotFound = errors.New("not found")
	// ErrMultipleRows is returned when a lookup expected one row and found more.
	ErrMultipleRows = errors.New("multiple rows returned")
	// ErrConflict is returned by conditional updates whose expected
	// updated_at no longer matches the stored row.
	ErrConflict = errors.New("row was modified concurrently")
	// ErrMalformedRow is returned when a row cannot be decoded into its contract.
	ErrMalformedRow = errors.New("malformed row")
)

// Gateway is the set of store operations the mining workflow uses.
type Gateway interface {
	// FetchProviderByWallet looks a provider up by wallet address,
	// case-insensitively.
	FetchProviderByWallet(ctx context.Context, walletAddress string) (*models.ProviderRow, error)

	// FetchProviderByUniqueID looks a provider up in the legacy providers table.
	//
	// Deprecated: use FetchProviderByWallet.
	FetchProviderByUniqueID(ctx context.Context, uniqueID string) (*models.ProviderRow, error)

	FetchMiningRecord(ctx context.Context, providerID int64) (*models.MiningRecordRow, error)

	// UpdateMiningRecord applies a partial update keyed by provider id and
	// returns the updated row. When update.ExpectedUpdatedAt is set the write
	// only applies if the stored updated_at equals it; otherwise ErrConflict.
	UpdateMiningRecord(ctx context.Context, providerID int64, update *models.MiningUpdate) (*models.MiningRecordRow, error)

	UpdateProvider(ctx context.Context, walletAddress string, update *models.ProviderUpdate) (*models.ProviderRow, error)
}

// ExactlyOne returns the single element of rows, ErrNotFound when rows is
// empty and ErrMultipleRows when it holds more than one.
func ExactlyOne[T any](rows []T) (T, error) {
	var zero T
	switch len(rows) {
	case 0:
		return zero, ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return zero, ErrMultipleRows
	}
}
