package domain

// Item is a sellable product within an event.
type Item struct {
	ID           string
	EventID      string
	Name         LocalizedString
	DefaultPrice Money
	Active       bool
	Admission    bool
	Position     int
	TaxRuleID    *string
}

// Quota is a capacity pool shared by one or more products. A nil Size means
// unlimited.
type Quota struct {
	ID      string
	EventID string
	Name    string
	Size    *int
	ItemIDs []string
}

// QuotaAvailability is the result of counting a quota's consumers.
type QuotaAvailability struct {
	Available       bool
	AvailableNumber *int
	TotalSize       *int
	PendingVouchers int
	UsedPositions   int
}

// TaxRule describes how tax is computed for products referencing it.
type TaxRule struct {
	ID               string
	EventID          string
	Name             LocalizedString
	Rate             Percent
	PriceIncludesTax bool
}
