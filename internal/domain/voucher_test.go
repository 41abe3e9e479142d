package domain

import (
	"testing"
	"time"
)

func TestVoucher_ApplyPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mode PriceMode
		val  Money
		base Money
		want Money
	}{
		{name: "none keeps base", mode: PriceModeNone, val: 500, base: 1000, want: 1000},
		{name: "set overrides", mode: PriceModeSet, val: 500, base: 1000, want: 500},
		{name: "subtract", mode: PriceModeSubtract, val: 300, base: 1000, want: 700},
		{name: "subtract clamps at zero", mode: PriceModeSubtract, val: 1500, base: 1000, want: 0},
		{name: "percent", mode: PriceModePercent, val: 2500, base: 1000, want: 750},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Voucher{PriceMode: tt.mode, Value: tt.val}
			if got := v.ApplyPrice(tt.base); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVoucher_Blocks(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		v    Voucher
		want bool
	}{
		{
			name: "blocking with free usages",
			v:    Voucher{BlockQuota: true, MaxUsages: 2, Redeemed: 1},
			want: true,
		},
		{
			name: "not blocking flag",
			v:    Voucher{BlockQuota: false, MaxUsages: 2},
			want: false,
		},
		{
			name: "fully redeemed stops blocking",
			v:    Voucher{BlockQuota: true, MaxUsages: 2, Redeemed: 2},
			want: false,
		},
		{
			name: "expired stops blocking",
			v:    Voucher{BlockQuota: true, MaxUsages: 2, ValidUntil: &past},
			want: false,
		},
		{
			name: "valid until in the future still blocks",
			v:    Voucher{BlockQuota: true, MaxUsages: 1, ValidUntil: &future},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Blocks(now); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebhook_Matches(t *testing.T) {
	t.Parallel()

	hook := Webhook{
		Enabled:       true,
		AllEvents:     false,
		LimitEventIDs: []string{"ev-1"},
		ActionTypes:   []string{"checkin.created"},
	}

	if !hook.Matches("checkin.created", "ev-1") {
		t.Fatalf("expected match for listed event and action")
	}
	if hook.Matches("checkin.created", "ev-2") {
		t.Fatalf("expected no match for unlisted event")
	}
	if hook.Matches("event.live.activated", "ev-1") {
		t.Fatalf("expected no match for unlisted action")
	}
	// Organizer-level notifications carry no event and bypass the limit list.
	if !hook.Matches("checkin.created", "") {
		t.Fatalf("expected match for organizer-level notification")
	}

	disabled := hook
	disabled.Enabled = false
	if disabled.Matches("checkin.created", "ev-1") {
		t.Fatalf("disabled webhook must never match")
	}

	all := Webhook{Enabled: true, AllEvents: true}
	if !all.Matches("anything", "ev-9") {
		t.Fatalf("all-events webhook without action filter matches everything")
	}
}
