package models

import (
	"encoding/json"
	"time"
)

// MiningRecordRow is a mining_data row as returned by the store.
type MiningRecordRow struct {
	ID               *int64     `json:"id"`
	ProviderID       *int64     `json:"provider_id"`
	MiningPoints     *int64     `json:"mining_points"`
	MiningTime       *time.Time `json:"mining_time"`
	AllocatedStorage *float64   `json:"allocated_storage"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// UnmarshalJSON accepts mining_time and updated_at with or without a zone
func (r *MiningRecordRow) UnmarshalJSON(data []byte) error {
	type plain MiningRecordRow
	aux := struct {
		*plain
		MiningTime *timestamp `json:"mining_time"`
		UpdatedAt  *timestamp `json:"updated_at"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.MiningTime = aux.MiningTime.timePtr()
	r.UpdatedAt = aux.UpdatedAt.timePtr()
	return nil
}

// MiningRecord is the mutable counter/timestamp state of a provider's mining
type MiningRecord struct {
	ID               int64
	ProviderID       int64
	MiningPoints     int64
	MiningTime       time.Time // last time mining was toggled
	AllocatedStorage float64
	UpdatedAt        time.Time
}

// MiningUpdate is the partial update written by a mining toggle.
// ExpectedUpdatedAt, when set, makes the write conditional on the stored
// updated_at still holding that value.
type MiningUpdate struct {
	MiningPoints      int64      `json:"mining_points"`
	MiningTime        time.Time  `json:"mining_time"`
	UpdatedAt         time.Time  `json:"updated_at"`
	AllocatedStorage  float64    `json:"allocated_storage"`
	ExpectedUpdatedAt *time.Time `json:"-"`
}
