package model

// NotificationKind names the entitlement lifecycle events surfaced to
// accounts and operators.
type NotificationKind string

const (
	NotifyPurchased NotificationKind = "purchased"
	NotifyExtended  NotificationKind = "extended"
	NotifyUpgraded  NotificationKind = "upgraded"
	NotifyExpired   NotificationKind = "expired"
	NotifySold      NotificationKind = "sold"
)

// Notification is the fire-and-forget event handed to the notifier.
// Delivery failure never affects the entitlement mutation that caused it.
type Notification struct {
	AccountID int64
	TierName  string
	Kind      NotificationKind
	Amount    int64 // refund or price involved, 0 when not applicable
}
