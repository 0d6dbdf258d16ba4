package model

import "time"

// Refund computes the buy-back value of an entitlement with the given
// expiry and tier price. Refunds are prorated by remaining whole months
// plus a fractional day remainder and halved to discourage buy-then-sell
// arbitrage:
//
//	refund = floor(price*fullMonths/2 + price*extraDays/30/2)
//
// which reduces to floor(price*remainingDays/60). Expired entitlements and
// zero-priced tiers refund nothing.
func Refund(expiresAt time.Time, price int64) int64 {
	return RefundAt(time.Now(), expiresAt, price)
}

// RefundAt is Refund evaluated at an explicit instant.
func RefundAt(now, expiresAt time.Time, price int64) int64 {
	if price <= 0 {
		return 0
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	remainingDays := int64(remaining / (24 * time.Hour))
	return price * remainingDays / 60
}
