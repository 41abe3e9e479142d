package domain

import "time"

// GiftCard is organizer-level stored value. Its current value is defined as
// the sum of its transactions, never stored directly.
type GiftCard struct {
	ID          string
	OrganizerID string
	Secret      string
	Currency    string
	Testmode    bool
	Expires     *time.Time
	Conditions  string
	Value       Money
	CreatedAt   time.Time
}

// GiftCardTransaction is one credit or debit on a gift card.
type GiftCardTransaction struct {
	ID         string
	GiftCardID string
	Value      Money
	Text       string
	CreatedAt  time.Time
}
