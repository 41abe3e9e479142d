package domain

// Organizer is the tenant entity owning events, teams and shared resources.
type Organizer struct {
	ID   string
	Slug string
	Name string
}
