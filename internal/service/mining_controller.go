package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/metrics"
	"github.com/aai-storage/mining-dashboard/internal/models"
)

// MiningPointsDelta is added when mining starts and subtracted when it stops
const MiningPointsDelta = 10

const uptimeZero = "0h 0m"

// MiningController owns the mining panel state of one dashboard session:
// the wallet being viewed, its provider and mining record, and the derived
// uptime. Store calls are made without holding the lock; a session runs at
// most one of them at a time.
type MiningController struct {
	id      string
	gw      gateway.Gateway
	metrics *metrics.Metrics
	now     func() time.Time

	mu            sync.Mutex
	walletAddress string
	provider      *models.Provider
	record        *models.MiningRecord
	uptime        string
	errMsg        string
	inFlight      bool
	closed        bool
	lastUsed      time.Time
}

func newMiningController(id string, gw gateway.Gateway, m *metrics.Metrics, now func() time.Time) *MiningController {
	return &MiningController{
		id:       id,
		gw:       gw,
		metrics:  m,
		now:      now,
		uptime:   uptimeZero,
		lastUsed: now(),
	}
}

// ID returns the session id
func (c *MiningController) ID() string {
	return c.id
}

// begin marks a request in flight. The caller must hold c.mu.
func (c *MiningController) begin() error {
	if c.closed {
		return ErrSessionClosed
	}
	if c.inFlight {
		return ErrBusy
	}
	c.inFlight = true
	c.lastUsed = c.now()
	return nil
}

// LoadStats resolves walletAddress to its provider and mining record and
// makes them the session's snapshot. On failure the previous snapshot is
// cleared, except for malformed addresses which never reach the store.
func (c *MiningController) LoadStats(ctx context.Context, walletAddress string) (*models.MiningView, error) {
	c.mu.Lock()
	if err := c.begin(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := ValidateWalletAddress(walletAddress); err != nil {
		c.inFlight = false
		c.errMsg = LoadErrorMessage(err)
		c.mu.Unlock()
		c.metrics.LoadTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}
	// The shown address always belongs to the snapshot beside it
	c.walletAddress = walletAddress
	c.errMsg = ""
	c.mu.Unlock()

	provider, record, err := c.fetch(ctx, walletAddress)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if c.closed {
		log.Printf("[MiningController] Session %s closed during load, discarding result", c.id)
		return nil, ErrSessionClosed
	}

	if err != nil {
		log.Printf("[MiningController] Load failed for wallet %s: %v", walletAddress, err)
		c.metrics.LoadTotal.WithLabelValues(metrics.ResultError).Inc()
		c.provider = nil
		c.record = nil
		c.uptime = uptimeZero
		c.errMsg = LoadErrorMessage(err)
		return nil, err
	}

	// Loaded stats are shown as running; nothing is written to the store
	provider.Active = true
	c.provider = provider
	c.record = record
	c.uptime = FormatUptime(record.MiningTime, c.now())
	c.metrics.LoadTotal.WithLabelValues(metrics.ResultOK).Inc()

	log.Printf("[MiningController] Loaded provider %d for wallet %s (points: %d, uptime: %s)",
		provider.ID, walletAddress, record.MiningPoints, c.uptime)

	return c.viewLocked(), nil
}

func (c *MiningController) fetch(ctx context.Context, walletAddress string) (*models.Provider, *models.MiningRecord, error) {
	providerRow, err := c.gw.FetchProviderByWallet(ctx, NormalizeWalletAddress(walletAddress))
	if err != nil {
		return nil, nil, classify("fetch provider", msgProviderNotFound, err)
	}
	provider, err := providerFromRow(providerRow, walletAddress)
	if err != nil {
		return nil, nil, err
	}

	recordRow, err := c.gw.FetchMiningRecord(ctx, provider.ID)
	if err != nil {
		return nil, nil, classify("fetch mining record", msgMiningNotFound, err)
	}
	record, err := miningRecordFromRow(recordRow)
	if err != nil {
		return nil, nil, err
	}
	return provider, record, nil
}

// ToggleMining starts or stops mining for the loaded provider: the mining
// record is written with the points adjusted by MiningPointsDelta and both
// timestamps set to now. Only the mining record is persisted; the provider's
// own active flag and points are left to ReconcileProvider.
//
// Without a loaded snapshot it does nothing and returns ErrNothingLoaded.
// On failure the snapshot is left as it was.
func (c *MiningController) ToggleMining(ctx context.Context) (*models.MiningView, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c.provider == nil || c.record == nil {
		c.mu.Unlock()
		return nil, ErrNothingLoaded
	}
	if err := c.begin(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	provider := *c.provider
	current := *c.record
	c.mu.Unlock()

	delta := int64(MiningPointsDelta)
	if provider.Active {
		delta = -delta
	}

	// Stored timestamps have microsecond precision; truncating keeps the
	// returned updated_at usable as the next expected value.
	now := c.now().UTC().Truncate(time.Microsecond)
	expected := current.UpdatedAt
	update := &models.MiningUpdate{
		MiningPoints:      current.MiningPoints + delta,
		MiningTime:        now,
		UpdatedAt:         now,
		AllocatedStorage:  current.AllocatedStorage,
		ExpectedUpdatedAt: &expected,
	}

	row, err := c.gw.UpdateMiningRecord(ctx, provider.ID, update)
	var record *models.MiningRecord
	if err != nil {
		err = classify("update mining record", msgMiningNotFound, err)
	} else {
		record, err = miningRecordFromRow(row)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if c.closed {
		log.Printf("[MiningController] Session %s closed during toggle, discarding result", c.id)
		return nil, ErrSessionClosed
	}

	if err != nil {
		log.Printf("[MiningController] Toggle failed for provider %d: %v", provider.ID, err)
		c.metrics.ToggleTotal.WithLabelValues(metrics.ResultError).Inc()
		c.errMsg = ToggleErrorMessage(err)
		return nil, err
	}

	c.record = record
	c.provider.Active = !provider.Active
	c.uptime = FormatUptime(now, c.now())
	c.errMsg = ""
	c.metrics.ToggleTotal.WithLabelValues(metrics.ResultOK).Inc()

	log.Printf("[MiningController] Provider %d mining active=%t (points: %d -> %d)",
		provider.ID, c.provider.Active, current.MiningPoints, record.MiningPoints)

	return c.viewLocked(), nil
}

// ReconcileProvider copies the session's active flag and the mining record's
// points onto the provider record, the only path that writes the provider.
func (c *MiningController) ReconcileProvider(ctx context.Context) (*models.MiningView, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c.provider == nil || c.record == nil {
		c.mu.Unlock()
		return nil, ErrNothingLoaded
	}
	if err := c.begin(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	active := c.provider.Active
	points := c.record.MiningPoints
	walletAddress := c.provider.WalletAddress
	c.mu.Unlock()

	row, err := c.gw.UpdateProvider(ctx, walletAddress, &models.ProviderUpdate{
		Active:       &active,
		MiningPoints: &points,
	})
	var provider *models.Provider
	if err != nil {
		err = classify("update provider", msgProviderNotFound, err)
	} else {
		provider, err = providerFromRow(row, walletAddress)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if c.closed {
		return nil, ErrSessionClosed
	}
	if err != nil {
		log.Printf("[MiningController] Reconcile failed for wallet %s: %v", walletAddress, err)
		c.errMsg = ToggleErrorMessage(err)
		return nil, err
	}

	c.provider = provider
	c.errMsg = ""
	return c.viewLocked(), nil
}

// Snapshot returns the current view of the session
func (c *MiningController) Snapshot() *models.MiningView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close marks the session as gone. Requests still in flight complete
// against the store but their results are dropped.
func (c *MiningController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MiningController) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return c.now()
	}
	return c.lastUsed
}

func (c *MiningController) viewLocked() *models.MiningView {
	view := &models.MiningView{
		SessionID:     c.id,
		Loading:       c.inFlight,
		CanLoad:       !c.inFlight && !c.closed,
		CanToggle:     c.provider != nil && c.record != nil && !c.inFlight && !c.closed,
		ToggleText:    "Start Storage Mining",
		WalletAddress: c.walletAddress,
		Uptime:        c.uptime,
		Error:         c.errMsg,
	}

	if p := c.provider; p != nil {
		view.Provider = &models.ProviderInfo{
			ID:               p.ID,
			WalletAddress:    p.WalletAddress,
			ProviderName:     p.ProviderName,
			Active:           p.Active,
			MiningPoints:     p.MiningPoints,
			AllocatedStorage: p.AllocatedStorage,
			EstimatedReward:  p.EstimatedReward,
		}
		if p.CreatedAt != nil {
			view.Provider.CreatedAt = p.CreatedAt.Format(time.RFC3339)
		}
		if p.Active {
			view.ToggleText = "Stop Storage Mining"
		}
	}

	if m := c.record; m != nil {
		view.Mining = &models.MiningRecordInfo{
			ID:               m.ID,
			ProviderID:       m.ProviderID,
			MiningPoints:     m.MiningPoints,
			MiningTime:       m.MiningTime.Format(time.RFC3339),
			AllocatedStorage: m.AllocatedStorage,
			UpdatedAt:        m.UpdatedAt.Format(time.RFC3339Nano),
		}
	}

	return view
}
