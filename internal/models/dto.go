package models

// ==================== Session API DTOs ====================

// CreateSessionResponse is returned by POST /api/v1/sessions
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// LoadStatsRequest is the body of POST /api/v1/sessions/:id/load
type LoadStatsRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// MiningView is the dashboard state of one session
type MiningView struct {
	SessionID string `json:"session_id"`

	// Controls state
	Loading    bool   `json:"loading"`
	CanLoad    bool   `json:"can_load"`
	CanToggle  bool   `json:"can_toggle"`
	ToggleText string `json:"toggle_text"`

	WalletAddress string            `json:"wallet_address,omitempty"`
	Provider      *ProviderInfo     `json:"provider"`
	Mining        *MiningRecordInfo `json:"mining"`
	Uptime        string            `json:"uptime"`

	Error string `json:"error,omitempty"`
}

// ProviderInfo is the provider as displayed
type ProviderInfo struct {
	ID               int64   `json:"id"`
	WalletAddress    string  `json:"wallet_address"`
	ProviderName     string  `json:"provider_name"`
	Active           bool    `json:"active"`
	MiningPoints     int64   `json:"mining_points"`
	AllocatedStorage float64 `json:"allocated_storage"`
	EstimatedReward  float64 `json:"estimated_reward"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// MiningRecordInfo is the mining record as displayed
type MiningRecordInfo struct {
	ID               int64   `json:"id"`
	ProviderID       int64   `json:"provider_id"`
	MiningPoints     int64   `json:"mining_points"`
	MiningTime       string  `json:"mining_time"`
	AllocatedStorage float64 `json:"allocated_storage"`
	UpdatedAt        string  `json:"updated_at"`
}
