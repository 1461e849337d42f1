package repository

import (
	"context"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/models"
)

// Gateway serves the mining workflow directly from PostgreSQL
type Gateway struct {
	providers *ProviderRepository
	mining    *MiningRepository
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway serves both tables from db, a pool or a transaction
func NewGateway(db DBTX) *Gateway {
	return &Gateway{
		providers: NewProviderRepository(db),
		mining:    NewMiningRepository(db),
	}
}

// FetchProviderByWallet looks a provider up by lowercased wallet address
func (g *Gateway) FetchProviderByWallet(ctx context.Context, walletAddress string) (*models.ProviderRow, error) {
	return g.providers.GetByWallet(ctx, walletAddress)
}

// Deprecated: use FetchProviderByWallet.
func (g *Gateway) FetchProviderByUniqueID(ctx context.Context, uniqueID string) (*models.ProviderRow, error) {
	return g.providers.GetByUniqueID(ctx, uniqueID)
}

// FetchMiningRecord returns the single mining record of a provider
func (g *Gateway) FetchMiningRecord(ctx context.Context, providerID int64) (*models.MiningRecordRow, error) {
	return g.mining.GetByProviderID(ctx, providerID)
}

// UpdateMiningRecord writes a toggle update inside a transaction
func (g *Gateway) UpdateMiningRecord(ctx context.Context, providerID int64, update *models.MiningUpdate) (*models.MiningRecordRow, error) {
	return g.mining.UpdateByProviderID(ctx, providerID, update)
}

// UpdateProvider applies a partial provider update
func (g *Gateway) UpdateProvider(ctx context.Context, walletAddress string, update *models.ProviderUpdate) (*models.ProviderRow, error) {
	return g.providers.UpdateByWallet(ctx, walletAddress, update)
}
