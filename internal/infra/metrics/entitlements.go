package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		entitlementsTotal,
		walletMutationsTotal,
	)
}

var (
	entitlementsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "entitlements_total",
			Help: "Current number of entitlement ledger rows by tier.",
		},
		[]string{"tier"},
	)

	walletMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_mutations_total",
			Help: "Wallet credits and debits issued by the engine.",
		},
		[]string{"kind"}, // 'credit', 'debit', 'refund'
	)
)

func SetEntitlementsTotal(counts map[string]int) {
	for tier, count := range counts {
		entitlementsTotal.WithLabelValues(tier).Set(float64(count))
	}
}

func IncWalletMutation(kind string) {
	walletMutationsTotal.WithLabelValues(kind).Inc()
}
