package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/metrics"
	"github.com/aai-storage/mining-dashboard/internal/models"
)

var minedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLoadStatsRejectsMalformedAddress(t *testing.T) {
	inputs := []string{
		"",
		"0x",
		"abcdef0123456789abcdef0123456789abcdef01",
		"0XAbCdEf0123456789aBcDeF0123456789AbCdEf01",
		"0xAbCdEf0123456789aBcDeF0123456789AbCdEf0",
		"0xAbCdEf0123456789aBcDeF0123456789AbCdEf012",
		"0xGbCdEf0123456789aBcDeF0123456789AbCdEf01",
		" 0xAbCdEf0123456789aBcDeF0123456789AbCdEf01",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			gw := newFakeGateway(50, minedAt)
			c, m := newTestController(gw, &testClock{t: minedAt})

			view, err := c.LoadStats(context.Background(), input)
			assert.Nil(t, view)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 0, gw.callCount())
			assert.Equal(t, "Invalid wallet address format. Please enter a valid Ethereum address", c.Snapshot().Error)
			assert.False(t, c.Snapshot().Loading)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadTotal.WithLabelValues(metrics.ResultRejected)))
		})
	}
}

func TestLoadStats(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	clock := &testClock{t: minedAt.Add(2*time.Hour + 15*time.Minute + 59*time.Second)}
	c, m := newTestController(gw, clock)

	view, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)

	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", gw.lastWallet)
	require.NotNil(t, view.Provider)
	require.NotNil(t, view.Mining)
	assert.Equal(t, int64(7), view.Provider.ID)
	assert.True(t, view.Provider.Active, "loaded provider is shown as active")
	assert.Equal(t, int64(50), view.Mining.MiningPoints)
	assert.Equal(t, "2h 15m", view.Uptime)
	assert.Equal(t, "Stop Storage Mining", view.ToggleText)
	assert.True(t, view.CanToggle)
	assert.Empty(t, view.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadTotal.WithLabelValues(metrics.ResultOK)))

	// Only local state is marked active
	assert.False(t, *gw.provider.Active)
	assert.Empty(t, gw.providerWrites)
}

func TestLoadStatsProviderNotFound(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	gw.provider = nil
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.LoadStats(context.Background(), testWallet)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.ErrorIs(t, err, gateway.ErrNotFound)

	view := c.Snapshot()
	assert.Nil(t, view.Provider)
	assert.Nil(t, view.Mining)
	assert.Equal(t, "Failed to load mining data. "+msgProviderNotFound, view.Error)
}

func TestLoadStatsMiningRecordNotFound(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	gw.record = nil
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.LoadStats(context.Background(), testWallet)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, msgMiningNotFound, nf.Message)
	assert.NotEqual(t, msgProviderNotFound, nf.Message)
	assert.Nil(t, c.Snapshot().Provider)
}

func TestLoadStatsClearsPreviousSnapshotOnFailure(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)

	gw.providerErr = errors.New("connection reset by peer")
	_, err = c.LoadStats(context.Background(), "0x1111111111111111111111111111111111111111")

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	view := c.Snapshot()
	assert.Nil(t, view.Provider)
	assert.Nil(t, view.Mining)
	assert.Equal(t, "0h 0m", view.Uptime)
	assert.False(t, view.CanToggle)
	assert.Equal(t, "Failed to load mining data. fetch provider: connection reset by peer", view.Error)
}

func TestLoadStatsMalformedAddressKeepsSnapshot(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)

	_, err = c.LoadStats(context.Background(), "0x123")
	require.Error(t, err)

	view := c.Snapshot()
	assert.NotNil(t, view.Provider)
	assert.Equal(t, testWallet, view.WalletAddress)
	assert.Equal(t, view.Provider.WalletAddress, NormalizeWalletAddress(view.WalletAddress))
}

func TestLoadStatsDataIntegrity(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(gw *fakeGateway)
		wantField string
		wantMsg   string
	}{
		{
			name:      "provider without id",
			mutate:    func(gw *fakeGateway) { gw.provider.ID = nil },
			wantField: "id",
			wantMsg:   "Invalid provider data: missing ID. Please contact support.",
		},
		{
			name:      "missing mining points",
			mutate:    func(gw *fakeGateway) { gw.record.MiningPoints = nil },
			wantField: "mining_points",
			wantMsg:   "Invalid mining data: missing mining points",
		},
		{
			name:      "missing allocated storage",
			mutate:    func(gw *fakeGateway) { gw.record.AllocatedStorage = nil },
			wantField: "allocated_storage",
			wantMsg:   "Invalid mining data: missing storage allocation",
		},
		{
			name:      "missing mining time",
			mutate:    func(gw *fakeGateway) { gw.record.MiningTime = nil },
			wantField: "mining_time",
			wantMsg:   "Invalid mining data: missing mining time",
		},
		{
			name:      "missing updated at",
			mutate:    func(gw *fakeGateway) { gw.record.UpdatedAt = nil },
			wantField: "updated_at",
			wantMsg:   "Invalid mining data: missing update timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway(50, minedAt)
			tt.mutate(gw)
			c, _ := newTestController(gw, &testClock{t: minedAt})

			_, err := c.LoadStats(context.Background(), testWallet)

			var di *DataIntegrityError
			require.ErrorAs(t, err, &di)
			assert.Equal(t, tt.wantField, di.Field)
			assert.Equal(t, tt.wantMsg, di.Message)
			assert.Equal(t, "Failed to load mining data. "+tt.wantMsg, c.Snapshot().Error)
		})
	}
}

func TestLoadStatsMalformedRow(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	gw.recordErr = errors.Join(gateway.ErrMalformedRow, errors.New("field mining_points: cannot unmarshal string"))
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.LoadStats(context.Background(), testWallet)

	var di *DataIntegrityError
	require.ErrorAs(t, err, &di)
}

func TestLoadErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "authentication",
			err:  &RemoteError{Op: "fetch provider", Err: errors.New("store returned status 401 (PGRST301): JWT expired")},
			want: "Failed to load mining data. Authentication failed. Please try again.",
		},
		{
			name: "not found text from the store",
			err:  &RemoteError{Op: "fetch provider", Err: errors.New("relation not found")},
			want: "Failed to load mining data. Provider not found. Please check your wallet address.",
		},
		{
			name: "other",
			err:  &RemoteError{Op: "fetch provider", Err: errors.New("timeout")},
			want: "Failed to load mining data. fetch provider: timeout",
		},
		{
			name: "validation",
			err:  &ValidationError{Input: "0x"},
			want: "Invalid wallet address format. Please enter a valid Ethereum address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LoadErrorMessage(tt.err))
		})
	}
}

func TestToggleMiningPoints(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	clock := &testClock{t: minedAt.Add(3 * time.Hour)}
	c, m := newTestController(gw, clock)

	_, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)

	// active=true, 50 points -> stop, 40 points
	clock.Set(minedAt.Add(4 * time.Hour))
	view, err := c.ToggleMining(context.Background())
	require.NoError(t, err)

	require.Len(t, gw.updates, 1)
	first := gw.updates[0]
	assert.Equal(t, int64(40), first.MiningPoints)
	assert.Equal(t, 100.0, first.AllocatedStorage)
	assert.True(t, first.MiningTime.Equal(minedAt.Add(4*time.Hour)))
	assert.True(t, first.UpdatedAt.Equal(first.MiningTime))
	require.NotNil(t, first.ExpectedUpdatedAt)
	assert.True(t, first.ExpectedUpdatedAt.Equal(minedAt))

	assert.False(t, view.Provider.Active)
	assert.Equal(t, "0h 0m", view.Uptime)
	assert.Equal(t, int64(40), view.Mining.MiningPoints)
	assert.Equal(t, "Start Storage Mining", view.ToggleText)

	// active=false, 40 points -> start, 50 points
	view, err = c.ToggleMining(context.Background())
	require.NoError(t, err)
	require.Len(t, gw.updates, 2)
	assert.Equal(t, int64(50), gw.updates[1].MiningPoints)
	assert.True(t, view.Provider.Active)
	assert.Equal(t, "0h 0m", view.Uptime)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToggleTotal.WithLabelValues(metrics.ResultOK)))

	// The provider record is never written by a toggle
	assert.Empty(t, gw.providerWrites)
	assert.False(t, *gw.provider.Active)
}

func TestToggleMiningAllowsNegativePoints(t *testing.T) {
	gw := newFakeGateway(5, minedAt)
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)

	view, err := c.ToggleMining(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(-5), view.Mining.MiningPoints)
}

func TestToggleMiningWithoutLoad(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	c, _ := newTestController(gw, &testClock{t: minedAt})
	before := c.Snapshot()

	view, err := c.ToggleMining(context.Background())
	assert.Nil(t, view)
	assert.ErrorIs(t, err, ErrNothingLoaded)
	assert.Equal(t, 0, gw.callCount())
	assert.Equal(t, before, c.Snapshot())
}

func TestToggleMiningFailureKeepsState(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	c, m := newTestController(gw, &testClock{t: minedAt.Add(time.Hour)})

	_, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)
	before := c.Snapshot()

	gw.updateErr = errors.New("permission denied for table mining_data")
	_, err = c.ToggleMining(context.Background())

	var re *RemoteError
	require.ErrorAs(t, err, &re)

	after := c.Snapshot()
	assert.Equal(t, before.Provider, after.Provider)
	assert.Equal(t, before.Mining, after.Mining)
	assert.Equal(t, before.Uptime, after.Uptime)
	assert.Equal(t, "update mining record: permission denied for table mining_data", after.Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToggleTotal.WithLabelValues(metrics.ResultError)))
}

func TestToggleMiningConflict(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	c, _ := newTestController(gw, &testClock{t: minedAt.Add(time.Hour)})

	_, err := c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)

	// Another session toggles first
	other, _ := newTestController(gw, &testClock{t: minedAt.Add(2 * time.Hour)})
	_, err = other.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)
	_, err = other.ToggleMining(context.Background())
	require.NoError(t, err)

	_, err = c.ToggleMining(context.Background())
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(50), c.Snapshot().Mining.MiningPoints)
	assert.Equal(t, int64(40), *gw.record.MiningPoints, "the first write wins")
}

func TestConcurrentRequestsAreRejected(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := newFakeGateway(50, minedAt)
	gw.block = make(chan struct{})
	c, _ := newTestController(gw, &testClock{t: minedAt})

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadStats(context.Background(), testWallet)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Snapshot().Loading }, time.Second, time.Millisecond)
	assert.False(t, c.Snapshot().CanLoad)

	_, err := c.LoadStats(context.Background(), testWallet)
	assert.ErrorIs(t, err, ErrBusy)

	close(gw.block)
	require.NoError(t, <-done)
	assert.False(t, c.Snapshot().Loading)
}

func TestCloseDiscardsInFlightLoad(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := newFakeGateway(50, minedAt)
	gw.block = make(chan struct{})
	c, _ := newTestController(gw, &testClock{t: minedAt})

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadStats(context.Background(), testWallet)
		done <- err
	}()
	require.Eventually(t, func() bool { return gw.callCount() == 1 }, time.Second, time.Millisecond)

	c.Close()
	close(gw.block)

	assert.ErrorIs(t, <-done, ErrSessionClosed)
	assert.Nil(t, c.Snapshot().Provider)

	_, err := c.ToggleMining(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestReconcileProvider(t *testing.T) {
	gw := newFakeGateway(50, minedAt)
	c, _ := newTestController(gw, &testClock{t: minedAt})

	_, err := c.ReconcileProvider(context.Background())
	assert.ErrorIs(t, err, ErrNothingLoaded)

	_, err = c.LoadStats(context.Background(), testWallet)
	require.NoError(t, err)
	_, err = c.ToggleMining(context.Background())
	require.NoError(t, err)

	view, err := c.ReconcileProvider(context.Background())
	require.NoError(t, err)

	require.Len(t, gw.providerWrites, 1)
	assert.Equal(t, models.ProviderUpdate{Active: ptr(false), MiningPoints: ptr(int64(40))}, gw.providerWrites[0])
	assert.False(t, view.Provider.Active)
	assert.Equal(t, int64(40), view.Provider.MiningPoints)
	assert.Equal(t, int64(40), view.Mining.MiningPoints)
}
