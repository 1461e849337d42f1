package models

import (
	"encoding/json"
	"time"
)

// ProviderRow is a wallet_addresses row as returned by the store.
// Every field is nullable: the store does not enforce the contract,
// the controller does.
type ProviderRow struct {
	ID               *int64     `json:"id"`
	WalletAddress    *string    `json:"wallet_address"`
	ProviderName     *string    `json:"provider_name"`
	Active           *bool      `json:"active"`
	MiningPoints     *int64     `json:"mining_points"`
	AllocatedStorage *float64   `json:"allocated_storage"`
	EstimatedReward  *float64   `json:"estimated_reward"`
	CreatedAt        *time.Time `json:"created_at"`
}

// UnmarshalJSON accepts created_at with or without a zone
func (r *ProviderRow) UnmarshalJSON(data []byte) error {
	type plain ProviderRow
	aux := struct {
		*plain
		CreatedAt *timestamp `json:"created_at"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.CreatedAt = aux.CreatedAt.timePtr()
	return nil
}

// Provider represents a registered wallet address offering storage capacity
type Provider struct {
	ID               int64
	WalletAddress    string
	ProviderName     string
	Active           bool
	MiningPoints     int64
	AllocatedStorage float64 // GB
	EstimatedReward  float64
	CreatedAt        *time.Time
}

// ProviderUpdate is a partial update of a provider. Nil fields are left as-is.
type ProviderUpdate struct {
	Active       *bool  `json:"active,omitempty"`
	MiningPoints *int64 `json:"mining_points,omitempty"`
}
