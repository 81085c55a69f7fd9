// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics aggregates the counters and gauges published by the RPC layer.
type SaleMetrics struct {
	purchases       *prometheus.CounterVec
	purchaseErrors  *prometheus.CounterVec
	claims          prometheus.Counter
	stakesOpened    prometheus.Counter
	stakeWithdrawed prometheus.Counter
	referralRewards prometheus.Counter
	rpcDuration     *prometheus.HistogramVec
	tokensSold      prometheus.Gauge
	usdRaised       prometheus.Gauge
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

// Sale returns the process-wide sale metrics, registering them on first use.
func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchases_total",
				Help: "Count of committed purchases by payment kind.",
			}, []string{"payment"}),
			purchaseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchase_errors_total",
				Help: "Count of rejected purchases by reason.",
			}, []string{"reason"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_claims_total",
				Help: "Count of successful allocation claims.",
			}),
			stakesOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_stakes_opened_total",
				Help: "Count of stake positions opened through purchases.",
			}),
			stakeWithdrawed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_stake_withdrawals_total",
				Help: "Count of matured stake withdrawals.",
			}),
			referralRewards: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_referral_claims_total",
				Help: "Count of referral reward claims.",
			}),
			rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "sale_rpc_duration_seconds",
				Help:    "RPC handler latency by method.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
			tokensSold: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_round_tokens_sold",
				Help: "Tokens sold in the latest round, base units scaled down by token decimals.",
			}),
			usdRaised: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_round_usd_raised",
				Help: "USD raised in the latest round, stablecoin base units.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.purchases,
			saleRegistry.purchaseErrors,
			saleRegistry.claims,
			saleRegistry.stakesOpened,
			saleRegistry.stakeWithdrawed,
			saleRegistry.referralRewards,
			saleRegistry.rpcDuration,
			saleRegistry.tokensSold,
			saleRegistry.usdRaised,
		)
	})
	return saleRegistry
}

// ObservePurchase records a committed purchase.
func (m *SaleMetrics) ObservePurchase(payment string, staked bool) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(payment).Inc()
	if staked {
		m.stakesOpened.Inc()
	}
}

// ObservePurchaseError records a rejected purchase by reason label.
func (m *SaleMetrics) ObservePurchaseError(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.purchaseErrors.WithLabelValues(reason).Inc()
}

// ObserveClaim records a successful allocation claim.
func (m *SaleMetrics) ObserveClaim() {
	if m != nil {
		m.claims.Inc()
	}
}

// ObserveStakeWithdrawal records a matured stake payout.
func (m *SaleMetrics) ObserveStakeWithdrawal() {
	if m != nil {
		m.stakeWithdrawed.Inc()
	}
}

// ObserveReferralClaim records a referral reward payout.
func (m *SaleMetrics) ObserveReferralClaim() {
	if m != nil {
		m.referralRewards.Inc()
	}
}

// ObserveRPC records handler latency for a method.
func (m *SaleMetrics) ObserveRPC(method string, seconds float64) {
	if m != nil {
		m.rpcDuration.WithLabelValues(method).Observe(seconds)
	}
}

// SetRoundProgress publishes the latest round's sold and raised totals.
func (m *SaleMetrics) SetRoundProgress(tokensSold, usdRaised float64) {
	if m == nil {
		return
	}
	m.tokensSold.Set(tokensSold)
	m.usdRaised.Set(usdRaised)
}
