package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/tessera-live/tessera/internal/domain"
)

type organizerGetter interface {
	Get(ctx context.Context, slug string) (domain.Organizer, error)
}

type eventGetter interface {
	Get(ctx context.Context, organizerID, slug string) (domain.Event, error)
}

// scope resolves the {organizer} and {event} path segments and enforces
// token visibility. Organizers the token cannot see answer 403 regardless of
// whether they exist, so probing cannot enumerate them.
type scope struct {
	organizers organizerGetter
	events     eventGetter
}

func (s *scope) organizer(r *http.Request) (domain.Organizer, error) {
	team, ok := TeamFrom(r.Context())
	if !ok {
		return domain.Organizer{}, domain.ErrInvalidToken
	}
	org, err := s.organizers.Get(r.Context(), r.PathValue("organizer"))
	if err != nil {
		if errors.Is(err, domain.ErrOrganizerNotFound) {
			return domain.Organizer{}, domain.ErrPermissionDenied
		}
		return domain.Organizer{}, err
	}
	if team.OrganizerID != org.ID {
		return domain.Organizer{}, domain.ErrPermissionDenied
	}
	return org, nil
}

// event resolves the organizer first, then the event slug. An event outside
// the team's limit list answers 404 exactly like an unknown slug, so a
// limited token cannot discover which slugs exist.
func (s *scope) event(r *http.Request) (domain.Organizer, domain.Event, error) {
	org, err := s.organizer(r)
	if err != nil {
		return domain.Organizer{}, domain.Event{}, err
	}
	ev, err := s.events.Get(r.Context(), org.ID, r.PathValue("event"))
	if err != nil {
		return domain.Organizer{}, domain.Event{}, err
	}
	team, _ := TeamFrom(r.Context())
	if !team.HasEvent(ev.ID) {
		return domain.Organizer{}, domain.Event{}, domain.ErrEventNotFound
	}
	return org, ev, nil
}

// requirePermission guards write (and some read) endpoints with a team
// permission flag.
func requirePermission(r *http.Request, allowed func(domain.Team) bool) error {
	team, ok := TeamFrom(r.Context())
	if !ok {
		return domain.ErrInvalidToken
	}
	if !allowed(team) {
		return domain.ErrPermissionDenied
	}
	return nil
}

func canChangeOrganizerSettings(t domain.Team) bool { return t.CanChangeOrganizerSettings }
func canChangeEventSettings(t domain.Team) bool     { return t.CanChangeEventSettings }
func canChangeItems(t domain.Team) bool             { return t.CanChangeItems }
func canManageGiftCards(t domain.Team) bool         { return t.CanManageGiftCards }
func canCheckin(t domain.Team) bool                 { return t.CanCheckin }
func canViewOrders(t domain.Team) bool              { return t.CanViewOrders }
