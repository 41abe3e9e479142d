package domain

import "time"

type PriceMode string

const (
	PriceModeNone     PriceMode = "none"
	PriceModeSet      PriceMode = "set"
	PriceModeSubtract PriceMode = "subtract"
	PriceModePercent  PriceMode = "percent"
)

func (m PriceMode) Valid() bool {
	switch m {
	case PriceModeNone, PriceModeSet, PriceModeSubtract, PriceModePercent:
		return true
	}
	return false
}

// Voucher is a redeemable code altering price or reserving quota for a
// limited number of uses.
type Voucher struct {
	ID         string
	EventID    string
	Code       string
	MaxUsages  int
	Redeemed   int
	PriceMode  PriceMode
	Value      Money
	ItemID     *string
	QuotaID    *string
	BlockQuota bool
	ValidUntil *time.Time
	Comment    string
	CreatedAt  time.Time
}

// Blocks reports whether the voucher currently reserves quota capacity.
func (v Voucher) Blocks(now time.Time) bool {
	if !v.BlockQuota {
		return false
	}
	if v.ValidUntil != nil && !v.ValidUntil.After(now) {
		return false
	}
	return v.Redeemed < v.MaxUsages
}

// ApplyPrice computes the effective price of a base amount under this
// voucher's price mode. Prices never go below zero.
func (v Voucher) ApplyPrice(base Money) Money {
	var price Money
	switch v.PriceMode {
	case PriceModeSet:
		price = v.Value
	case PriceModeSubtract:
		price = base - v.Value
	case PriceModePercent:
		price = Percent(v.Value).ApplyTo(base)
	default:
		return base
	}
	if price < 0 {
		return 0
	}
	return price
}
