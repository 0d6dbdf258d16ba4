package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"telegram-tier-entitlements/internal/domain/model"
)

func init() {
	register(
		purchasesTotal,
		purchaseRejectionsTotal,
		salesTotal,
		refundsIssued,
	)
}

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Settled purchases by decision path and tier.",
		},
		[]string{"path", "tier"},
	)

	purchaseRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_rejections_total",
			Help: "Purchases rejected before any mutation, by reason.",
		},
		[]string{"reason"},
	)

	salesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_total",
			Help: "Early terminations by tier.",
		},
		[]string{"tier"},
	)

	refundsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_issued_total",
			Help: "Sum of internal currency refunded by upgrades and sales.",
		},
	)
)

func IncPurchase(path model.PurchasePath, tier string) {
	purchasesTotal.WithLabelValues(string(path), tier).Inc()
}

func IncPurchaseRejected(reason string) {
	purchaseRejectionsTotal.WithLabelValues(reason).Inc()
}

func IncSale(tier string, refund int64) {
	salesTotal.WithLabelValues(tier).Inc()
	if refund > 0 {
		refundsIssued.Add(float64(refund))
	}
}
