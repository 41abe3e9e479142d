package domain

import "time"

// Team groups API tokens under an organizer and carries their permissions.
type Team struct {
	ID            string
	OrganizerID   string
	Name          string
	AllEvents     bool
	LimitEventIDs []string

	CanChangeOrganizerSettings bool
	CanChangeEventSettings     bool
	CanChangeItems             bool
	CanManageGiftCards         bool
	CanCheckin                 bool
	CanViewOrders              bool
}

// HasEvent reports whether the team may see the given event.
func (t Team) HasEvent(eventID string) bool {
	if t.AllEvents {
		return true
	}
	for _, id := range t.LimitEventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

// APIToken authenticates requests. Only the SHA-256 hash of the token value
// is stored; the plaintext is shown exactly once at creation.
type APIToken struct {
	ID        string
	TeamID    string
	Name      string
	Active    bool
	TokenHash string
	CreatedAt time.Time
}
