package app

import (
	"context"
	"regexp"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type EventRepository interface {
	Create(ctx context.Context, event domain.Event) error
	GetBySlug(ctx context.Context, organizerID, slug string) (domain.Event, error)
	List(ctx context.Context, organizerID string, limit, offset int) ([]domain.Event, int, error)
	Update(ctx context.Context, event domain.Event) error
	Delete(ctx context.Context, id string) error

	CreateSubEvent(ctx context.Context, sub domain.SubEvent) error
	GetSubEvent(ctx context.Context, eventID, id string) (domain.SubEvent, error)
	ListSubEvents(ctx context.Context, eventID string, limit, offset int) ([]domain.SubEvent, int, error)
	UpdateSubEvent(ctx context.Context, sub domain.SubEvent) error
	DeleteSubEvent(ctx context.Context, eventID, id string) error
}

type EventService struct {
	repo     EventRepository
	clock    clock.Clock
	notifier Notifier
}

func NewEventService(repo EventRepository, clk clock.Clock) *EventService {
	return &EventService{repo: repo, clock: clk}
}

// SetNotifier attaches the webhook pipeline. Without one, live toggles are
// simply not announced.
func (s *EventService) SetNotifier(n Notifier) {
	s.notifier = n
}

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.\-_]*$`)

type CreateEventInput struct {
	Slug         string
	Name         domain.LocalizedString
	Currency     string
	Live         bool
	DateFrom     *time.Time
	DateTo       *time.Time
	PresaleStart *time.Time
	PresaleEnd   *time.Time
}

func (s *EventService) Create(ctx context.Context, organizerID string, in CreateEventInput) (domain.Event, error) {
	if !slugPattern.MatchString(in.Slug) {
		return domain.Event{}, domain.ErrInvalidSlug
	}
	if in.Name.Any() == "" {
		return domain.Event{}, domain.ErrNameRequired
	}
	currency := in.Currency
	if currency == "" {
		currency = "EUR"
	}

	event := domain.Event{
		ID:           newID(),
		OrganizerID:  organizerID,
		Slug:         in.Slug,
		Name:         in.Name,
		Live:         in.Live,
		Currency:     currency,
		DateFrom:     in.DateFrom,
		DateTo:       in.DateTo,
		PresaleStart: in.PresaleStart,
		PresaleEnd:   in.PresaleEnd,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *EventService) Get(ctx context.Context, organizerID, slug string) (domain.Event, error) {
	return s.repo.GetBySlug(ctx, organizerID, slug)
}

func (s *EventService) List(ctx context.Context, organizerID string, page Page) ([]domain.Event, int, error) {
	return s.repo.List(ctx, organizerID, page.Limit(), page.Offset())
}

type UpdateEventInput struct {
	Name         *domain.LocalizedString
	Live         *bool
	Currency     *string
	DateFrom     *time.Time
	DateTo       *time.Time
	PresaleStart *time.Time
	PresaleEnd   *time.Time
}

func (s *EventService) Update(ctx context.Context, organizerID, slug string, in UpdateEventInput) (domain.Event, error) {
	event, err := s.repo.GetBySlug(ctx, organizerID, slug)
	if err != nil {
		return domain.Event{}, err
	}
	wasLive := event.Live
	if in.Name != nil {
		if in.Name.Any() == "" {
			return domain.Event{}, domain.ErrNameRequired
		}
		event.Name = *in.Name
	}
	if in.Live != nil {
		event.Live = *in.Live
	}
	if in.Currency != nil && *in.Currency != "" {
		event.Currency = *in.Currency
	}
	if in.DateFrom != nil {
		event.DateFrom = in.DateFrom
	}
	if in.DateTo != nil {
		event.DateTo = in.DateTo
	}
	if in.PresaleStart != nil {
		event.PresaleStart = in.PresaleStart
	}
	if in.PresaleEnd != nil {
		event.PresaleEnd = in.PresaleEnd
	}
	if err := s.repo.Update(ctx, event); err != nil {
		return domain.Event{}, err
	}
	if s.notifier != nil && event.Live != wasLive {
		action := "event.live.activated"
		if !event.Live {
			action = "event.live.deactivated"
		}
		// Notifications only queue a delivery; a failure here must not unwind
		// a committed update.
		_ = s.notifier.Notify(ctx, organizerID, event.ID, Notification{
			Organizer: organizerID,
			Event:     event.ID,
			Action:    action,
			Data:      map[string]any{"live": event.Live},
		})
	}
	return event, nil
}

// Delete removes an event. Live events must be taken offline first.
func (s *EventService) Delete(ctx context.Context, organizerID, slug string) error {
	event, err := s.repo.GetBySlug(ctx, organizerID, slug)
	if err != nil {
		return err
	}
	if event.Live {
		return domain.ErrEventLive
	}
	return s.repo.Delete(ctx, event.ID)
}

type SubEventInput struct {
	Name     domain.LocalizedString
	Active   bool
	DateFrom *time.Time
	DateTo   *time.Time
}

func (s *EventService) CreateSubEvent(ctx context.Context, eventID string, in SubEventInput) (domain.SubEvent, error) {
	if in.Name.Any() == "" {
		return domain.SubEvent{}, domain.ErrNameRequired
	}
	sub := domain.SubEvent{
		ID:       newID(),
		EventID:  eventID,
		Name:     in.Name,
		Active:   in.Active,
		DateFrom: in.DateFrom,
		DateTo:   in.DateTo,
	}
	if err := s.repo.CreateSubEvent(ctx, sub); err != nil {
		return domain.SubEvent{}, err
	}
	return sub, nil
}

func (s *EventService) GetSubEvent(ctx context.Context, eventID, id string) (domain.SubEvent, error) {
	return s.repo.GetSubEvent(ctx, eventID, id)
}

func (s *EventService) ListSubEvents(ctx context.Context, eventID string, page Page) ([]domain.SubEvent, int, error) {
	return s.repo.ListSubEvents(ctx, eventID, page.Limit(), page.Offset())
}

type UpdateSubEventInput struct {
	Name     *domain.LocalizedString
	Active   *bool
	DateFrom *time.Time
	DateTo   *time.Time
}

func (s *EventService) UpdateSubEvent(ctx context.Context, eventID, id string, in UpdateSubEventInput) (domain.SubEvent, error) {
	sub, err := s.repo.GetSubEvent(ctx, eventID, id)
	if err != nil {
		return domain.SubEvent{}, err
	}
	if in.Name != nil {
		if in.Name.Any() == "" {
			return domain.SubEvent{}, domain.ErrNameRequired
		}
		sub.Name = *in.Name
	}
	if in.Active != nil {
		sub.Active = *in.Active
	}
	if in.DateFrom != nil {
		sub.DateFrom = in.DateFrom
	}
	if in.DateTo != nil {
		sub.DateTo = in.DateTo
	}
	if err := s.repo.UpdateSubEvent(ctx, sub); err != nil {
		return domain.SubEvent{}, err
	}
	return sub, nil
}

func (s *EventService) DeleteSubEvent(ctx context.Context, eventID, id string) error {
	return s.repo.DeleteSubEvent(ctx, eventID, id)
}
