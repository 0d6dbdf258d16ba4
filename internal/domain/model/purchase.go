package model

// PurchasePath identifies which of the mutually exclusive purchase paths
// the decision engine took for a payment.
type PurchasePath string

const (
	// PathNormal is a plain purchase or same-tier extension at full price.
	PathNormal PurchasePath = "normal"
	// PathPartial is a top-up: a fractional payment extending the
	// currently held entitlement instead of buying the target tier.
	PathPartial PurchasePath = "partial"
	// PathUpgrade moves a renewal-due entitlement to the next-higher tier,
	// crediting the prorated refund of the old one.
	PathUpgrade PurchasePath = "upgrade"
	// PathWalletCredit means no purchase applied and the full amount became
	// general-purpose wallet balance (downgrade guard).
	PathWalletCredit PurchasePath = "wallet_credit"
)

// PaymentOrigin distinguishes how a payment entered the engine. The
// downgrade guard applies only to ingested payments.
type PaymentOrigin string

const (
	// OriginIngested is an automatic payment resolved from a deposit.
	OriginIngested PaymentOrigin = "ingested"
	// OriginWallet is an account spending its existing balance.
	OriginWallet PaymentOrigin = "wallet"
	// OriginOperator is an operator-issued adjustment.
	OriginOperator PaymentOrigin = "operator"
)

// PurchaseOutcome describes what a purchase did. It is transient: callers
// use it to notify and report, nothing persists it.
type PurchaseOutcome struct {
	Path         PurchasePath
	TierName     string // tier actually affected (for partial: the held tier)
	DaysAdded    int
	RefundIssued int64 // 0 when no refund applied
	WalletDelta  int64 // net balance change applied by the engine
}
