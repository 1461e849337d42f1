package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aai-storage/mining-dashboard/internal/gateway"
	"github.com/aai-storage/mining-dashboard/internal/models"
)

const namePrefix = "mining_"

// Operation results
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected" // failed locally, no store call made
)

// Metrics holds the dashboard collectors
type Metrics struct {
	LoadTotal       *prometheus.CounterVec
	ToggleTotal     *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
}

// New registers the dashboard metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoadTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: namePrefix + "load_total",
				Help: "Total number of mining stats loads by result",
			},
			[]string{"result"},
		),
		ToggleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: namePrefix + "toggle_total",
				Help: "Total number of mining toggles by result",
			},
			[]string{"result"},
		),
		GatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    namePrefix + "gateway_request_duration_seconds",
				Help:    "Duration of store requests by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: namePrefix + "sessions_active",
				Help: "Number of open dashboard sessions",
			},
		),
	}
}

// InstrumentGateway wraps g so every call is timed
func InstrumentGateway(g gateway.Gateway, m *Metrics) gateway.Gateway {
	return &instrumentedGateway{next: g, m: m}
}

type instrumentedGateway struct {
	next gateway.Gateway
	m    *Metrics
}

func (g *instrumentedGateway) observe(op string, start time.Time, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	g.m.GatewayDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func (g *instrumentedGateway) FetchProviderByWallet(ctx context.Context, walletAddress string) (_ *models.ProviderRow, err error) {
	defer func(start time.Time) { g.observe("fetch_provider_by_wallet", start, err) }(time.Now())
	return g.next.FetchProviderByWallet(ctx, walletAddress)
}

func (g *instrumentedGateway) FetchProviderByUniqueID(ctx context.Context, uniqueID string) (_ *models.ProviderRow, err error) {
	defer func(start time.Time) { g.observe("fetch_provider_by_unique_id", start, err) }(time.Now())
	return g.next.FetchProviderByUniqueID(ctx, uniqueID) //nolint:staticcheck
}

func (g *instrumentedGateway) FetchMiningRecord(ctx context.Context, providerID int64) (_ *models.MiningRecordRow, err error) {
	defer func(start time.Time) { g.observe("fetch_mining_record", start, err) }(time.Now())
	return g.next.FetchMiningRecord(ctx, providerID)
}

func (g *instrumentedGateway) UpdateMiningRecord(ctx context.Context, providerID int64, update *models.MiningUpdate) (_ *models.MiningRecordRow, err error) {
	defer func(start time.Time) { g.observe("update_mining_record", start, err) }(time.Now())
	return g.next.UpdateMiningRecord(ctx, providerID, update)
}

func (g *instrumentedGateway) UpdateProvider(ctx context.Context, walletAddress string, update *models.ProviderUpdate) (_ *models.ProviderRow, err error) {
	defer func(start time.Time) { g.observe("update_provider", start, err) }(time.Now())
	return g.next.UpdateProvider(ctx, walletAddress, update)
}
