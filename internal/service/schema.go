package service

import (
	"github.com/aai-storage/mining-dashboard/internal/models"
)

func integrityError(field, message string) error {
	return &DataIntegrityError{Field: field, Message: message}
}

// providerFromRow validates a provider row. Only the id is required; the
// remaining fields are display-only and default to their zero values.
func providerFromRow(row *models.ProviderRow, walletAddress string) (*models.Provider, error) {
	if row == nil || row.ID == nil {
		return nil, integrityError("id", "Invalid provider data: missing ID. Please contact support.")
	}

	p := &models.Provider{
		ID:            *row.ID,
		WalletAddress: NormalizeWalletAddress(walletAddress),
		CreatedAt:     row.CreatedAt,
	}
	if row.WalletAddress != nil {
		p.WalletAddress = *row.WalletAddress
	}
	if row.ProviderName != nil {
		p.ProviderName = *row.ProviderName
	}
	if row.Active != nil {
		p.Active = *row.Active
	}
	if row.MiningPoints != nil {
		p.MiningPoints = *row.MiningPoints
	}
	if row.AllocatedStorage != nil {
		p.AllocatedStorage = *row.AllocatedStorage
	}
	if row.EstimatedReward != nil {
		p.EstimatedReward = *row.EstimatedReward
	}
	return p, nil
}

// miningRecordFromRow validates a mining record row against its contract
func miningRecordFromRow(row *models.MiningRecordRow) (*models.MiningRecord, error) {
	if row == nil {
		return nil, integrityError("", "Invalid mining data: empty record")
	}
	switch {
	case row.MiningPoints == nil:
		return nil, integrityError("mining_points", "Invalid mining data: missing mining points")
	case row.AllocatedStorage == nil:
		return nil, integrityError("allocated_storage", "Invalid mining data: missing storage allocation")
	case row.MiningTime == nil || row.MiningTime.IsZero():
		return nil, integrityError("mining_time", "Invalid mining data: missing mining time")
	case row.UpdatedAt == nil || row.UpdatedAt.IsZero():
		return nil, integrityError("updated_at", "Invalid mining data: missing update timestamp")
	}

	m := &models.MiningRecord{
		MiningPoints:     *row.MiningPoints,
		MiningTime:       *row.MiningTime,
		AllocatedStorage: *row.AllocatedStorage,
		UpdatedAt:        *row.UpdatedAt,
	}
	if row.ID != nil {
		m.ID = *row.ID
	}
	if row.ProviderID != nil {
		m.ProviderID = *row.ProviderID
	}
	return m, nil
}
