package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	WalletOps            *prometheus.CounterVec
	InviteRedemptions    *prometheus.CounterVec
	JoinDecisions        *prometheus.CounterVec
	CycleAdvancesTotal   *prometheus.CounterVec
	CycleAdvanceDuration prometheus.Histogram
	PayoutAmount         prometheus.Histogram
	TierRejections       *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		WalletOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajo_wallet_operations_total",
				Help: "Total wallet ledger operations.",
			},
			[]string{"op", "status"},
		),
		InviteRedemptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajo_invite_redemptions_total",
				Help: "Total invite redemption attempts.",
			},
			[]string{"status"},
		),
		JoinDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajo_join_decisions_total",
				Help: "Total join request decisions.",
			},
			[]string{"decision"},
		),
		CycleAdvancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajo_cycle_advances_total",
				Help: "Total cycle advances.",
			},
			[]string{"status"},
		),
		CycleAdvanceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ajo_cycle_advance_duration_seconds",
				Help:    "Cycle advance duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		PayoutAmount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ajo_payout_amount",
				Help:    "Payout amounts in smallest currency unit.",
				Buckets: prometheus.ExponentialBuckets(1000, 10, 7),
			},
		),
		TierRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ajo_tier_rejections_total",
				Help: "Total operations rejected by the tier gate.",
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(
		m.WalletOps,
		m.InviteRedemptions,
		m.JoinDecisions,
		m.CycleAdvancesTotal,
		m.CycleAdvanceDuration,
		m.PayoutAmount,
		m.TierRejections,
	)
	return m
}

func (m *Metrics) IncWalletOp(op, status string) {
	if m == nil {
		return
	}
	m.WalletOps.WithLabelValues(op, status).Inc()
}

func (m *Metrics) IncInviteRedemption(status string) {
	if m == nil {
		return
	}
	m.InviteRedemptions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncJoinDecision(decision string) {
	if m == nil {
		return
	}
	m.JoinDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveCycleAdvance(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CycleAdvancesTotal.WithLabelValues(status).Inc()
	m.CycleAdvanceDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObservePayout(amount int64) {
	if m == nil {
		return
	}
	m.PayoutAmount.Observe(float64(amount))
}

func (m *Metrics) IncTierRejection(op string) {
	if m == nil {
		return
	}
	m.TierRejections.WithLabelValues(op).Inc()
}
