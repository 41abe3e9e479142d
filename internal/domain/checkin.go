package domain

import "time"

// Position is a single admission ticket: the unit check-ins operate on.
// Positions are imported via the API; cart and checkout flows live elsewhere.
type Position struct {
	ID           string
	EventID      string
	Secret       string
	ItemID       string
	SubEventID   *string
	Variation    string
	AttendeeName string
	Price        Money
	VoucherID    *string
	CreatedAt    time.Time
}

// CheckinList is a named, filtered view of positions used to track
// attendance at one entry point.
type CheckinList struct {
	ID              string
	EventID         string
	Name            string
	AllProducts     bool
	LimitProductIDs []string
	SubEventID      *string
	IncludePending  bool
}

// IncludesItem reports whether positions of the given product belong on this
// list.
func (l CheckinList) IncludesItem(itemID string) bool {
	if l.AllProducts {
		return true
	}
	for _, id := range l.LimitProductIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

type CheckinType string

const (
	CheckinTypeEntry CheckinType = "entry"
	CheckinTypeExit  CheckinType = "exit"
)

// Checkin is one recorded scan of a position on a list. Nonce makes retried
// scans idempotent: the same (list, position, nonce) is stored once.
type Checkin struct {
	ID         string
	ListID     string
	PositionID string
	Type       CheckinType
	Nonce      string
	Datetime   time.Time
	Forced     bool
}

// ListStatus is the aggregate view behind a check-in list's status endpoint.
type ListStatus struct {
	CheckinCount  int
	PositionCount int
	Items         []ListStatusItem
}

type ListStatusItem struct {
	ItemID        string
	CheckinCount  int
	PositionCount int
}
