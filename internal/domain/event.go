package domain

import "time"

// Event is a ticketed happening owned by an organizer.
type Event struct {
	ID           string
	OrganizerID  string
	Slug         string
	Name         LocalizedString
	Live         bool
	Currency     string
	DateFrom     *time.Time
	DateTo       *time.Time
	PresaleStart *time.Time
	PresaleEnd   *time.Time
	CreatedAt    time.Time
}

// SubEvent is a single date within an event series.
type SubEvent struct {
	ID       string
	EventID  string
	Name     LocalizedString
	Active   bool
	DateFrom *time.Time
	DateTo   *time.Time
}
