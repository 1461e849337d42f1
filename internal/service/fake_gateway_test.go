package service

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/metrics"
	"github.com/aai-storage/mining-dashboard/internal/models"
)

const testWallet = "0xAbCdEf0123456789aBcDeF0123456789AbCdEf01"

func ptr[T any](v T) *T { return &v }

// fakeGateway is an in-memory store with one provider and one mining record
type fakeGateway struct {
	mu sync.Mutex

	provider *models.ProviderRow
	record   *models.MiningRecordRow

	providerErr error
	recordErr   error
	updateErr   error

	// block, when set, is waited on inside every call
	block chan struct{}

	calls          int
	lastWallet     string
	updates        []models.MiningUpdate
	providerWrites []models.ProviderUpdate
}

var _ gateway.Gateway = (*fakeGateway)(nil)

func newFakeGateway(points int64, miningTime time.Time) *fakeGateway {
	created := miningTime.Add(-24 * time.Hour)
	updated := miningTime
	return &fakeGateway{
		provider: &models.ProviderRow{
			ID:               ptr(int64(7)),
			WalletAddress:    ptr("0xabcdef0123456789abcdef0123456789abcdef01"),
			ProviderName:     ptr("node-1"),
			Active:           ptr(false),
			MiningPoints:     ptr(points),
			AllocatedStorage: ptr(100.0),
			EstimatedReward:  ptr(2.5),
			CreatedAt:        &created,
		},
		record: &models.MiningRecordRow{
			ID:               ptr(int64(1)),
			ProviderID:       ptr(int64(7)),
			MiningPoints:     ptr(points),
			MiningTime:       &miningTime,
			AllocatedStorage: ptr(100.0),
			UpdatedAt:        &updated,
		},
	}
}

func (f *fakeGateway) enter() {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGateway) FetchProviderByWallet(_ context.Context, walletAddress string) (*models.ProviderRow, error) {
	f.enter()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWallet = walletAddress
	if f.providerErr != nil {
		return nil, f.providerErr
	}
	if f.provider == nil {
		return nil, gateway.ErrNotFound
	}
	return f.provider, nil
}

func (f *fakeGateway) FetchProviderByUniqueID(context.Context, string) (*models.ProviderRow, error) {
	f.enter()
	return nil, gateway.ErrNotFound
}

func (f *fakeGateway) FetchMiningRecord(_ context.Context, providerID int64) (*models.MiningRecordRow, error) {
	f.enter()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	if f.record == nil || *f.record.ProviderID != providerID {
		return nil, gateway.ErrNotFound
	}
	return f.record, nil
}

func (f *fakeGateway) UpdateMiningRecord(_ context.Context, providerID int64, update *models.MiningUpdate) (*models.MiningRecordRow, error) {
	f.enter()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *update)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.record == nil || *f.record.ProviderID != providerID {
		return nil, gateway.ErrNotFound
	}
	if update.ExpectedUpdatedAt != nil && !update.ExpectedUpdatedAt.Equal(*f.record.UpdatedAt) {
		return nil, gateway.ErrConflict
	}
	miningTime := update.MiningTime
	updatedAt := update.UpdatedAt
	f.record = &models.MiningRecordRow{
		ID:               f.record.ID,
		ProviderID:       f.record.ProviderID,
		MiningPoints:     ptr(update.MiningPoints),
		MiningTime:       &miningTime,
		AllocatedStorage: ptr(update.AllocatedStorage),
		UpdatedAt:        &updatedAt,
	}
	return f.record, nil
}

func (f *fakeGateway) UpdateProvider(_ context.Context, _ string, update *models.ProviderUpdate) (*models.ProviderRow, error) {
	f.enter()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providerWrites = append(f.providerWrites, *update)
	if f.provider == nil {
		return nil, gateway.ErrNotFound
	}
	row := *f.provider
	if update.Active != nil {
		row.Active = ptr(*update.Active)
	}
	if update.MiningPoints != nil {
		row.MiningPoints = ptr(*update.MiningPoints)
	}
	f.provider = &row
	return f.provider, nil
}

// testClock is a settable wall clock
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestController(gw gateway.Gateway, clock *testClock) (*MiningController, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return newMiningController("session-1", gw, m, clock.Now), m
}
