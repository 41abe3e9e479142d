package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

// Shared router fixture: two organizers, one reachable event per test token.
// Tokens resolve to teams with different visibility so every branch of the
// scoping rules can be exercised over real routes.

type stubAuth struct {
	teams map[string]domain.Team
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (domain.Team, error) {
	team, ok := s.teams[token]
	if !ok {
		return domain.Team{}, domain.ErrInvalidToken
	}
	return team, nil
}

type stubOrganizers struct {
	orgs map[string]domain.Organizer
}

func (s *stubOrganizers) Get(_ context.Context, slug string) (domain.Organizer, error) {
	org, ok := s.orgs[slug]
	if !ok {
		return domain.Organizer{}, domain.ErrOrganizerNotFound
	}
	return org, nil
}

func (s *stubOrganizers) List(_ context.Context, visibleIDs []string, _ app.Page) ([]domain.Organizer, int, error) {
	var out []domain.Organizer
	for _, org := range s.orgs {
		for _, id := range visibleIDs {
			if org.ID == id {
				out = append(out, org)
			}
		}
	}
	return out, len(out), nil
}

func (s *stubOrganizers) Update(_ context.Context, slug string, _ app.UpdateOrganizerInput) (domain.Organizer, error) {
	return s.Get(context.Background(), slug)
}

type stubEvents struct {
	events map[string]domain.Event
}

func (s *stubEvents) Get(_ context.Context, organizerID, slug string) (domain.Event, error) {
	ev, ok := s.events[slug]
	if !ok || ev.OrganizerID != organizerID {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, nil
}

func (s *stubEvents) Create(_ context.Context, _ string, _ app.CreateEventInput) (domain.Event, error) {
	return domain.Event{}, nil
}

func (s *stubEvents) List(_ context.Context, _ string, _ app.Page) ([]domain.Event, int, error) {
	return nil, 0, nil
}

func (s *stubEvents) Update(_ context.Context, organizerID, slug string, _ app.UpdateEventInput) (domain.Event, error) {
	return s.Get(context.Background(), organizerID, slug)
}

func (s *stubEvents) Delete(_ context.Context, _, _ string) error { return nil }

func (s *stubEvents) CreateSubEvent(_ context.Context, _ string, _ app.SubEventInput) (domain.SubEvent, error) {
	return domain.SubEvent{}, nil
}

func (s *stubEvents) GetSubEvent(_ context.Context, _, _ string) (domain.SubEvent, error) {
	return domain.SubEvent{}, domain.ErrSubEventNotFound
}

func (s *stubEvents) ListSubEvents(_ context.Context, _ string, _ app.Page) ([]domain.SubEvent, int, error) {
	return nil, 0, nil
}

func (s *stubEvents) UpdateSubEvent(_ context.Context, _, _ string, _ app.UpdateSubEventInput) (domain.SubEvent, error) {
	return domain.SubEvent{}, domain.ErrSubEventNotFound
}

func (s *stubEvents) DeleteSubEvent(_ context.Context, _, _ string) error { return nil }

// fullAccess is the team behind "good-token": organizer org-1, all events,
// every permission.
func fullAccess() domain.Team {
	return domain.Team{
		ID:          "team-1",
		OrganizerID: "org-1",
		Name:        "Admins",
		AllEvents:   true,

		CanChangeOrganizerSettings: true,
		CanChangeEventSettings:     true,
		CanChangeItems:             true,
		CanManageGiftCards:         true,
		CanCheckin:                 true,
		CanViewOrders:              true,
	}
}

func testRouter(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()

	limited := fullAccess()
	limited.ID = "team-2"
	limited.AllEvents = false
	limited.LimitEventIDs = []string{"ev-1"}

	readonly := fullAccess()
	readonly.ID = "team-3"
	readonly.CanChangeOrganizerSettings = false
	readonly.CanChangeEventSettings = false
	readonly.CanChangeItems = false
	readonly.CanManageGiftCards = false
	readonly.CanCheckin = false

	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Auth = &stubAuth{teams: map[string]domain.Team{
		"good-token":     fullAccess(),
		"limited-token":  limited,
		"readonly-token": readonly,
	}}
	if cfg.Organizers == nil {
		cfg.Organizers = &stubOrganizers{orgs: map[string]domain.Organizer{
			"demo":  {ID: "org-1", Slug: "demo", Name: "Demo Org"},
			"other": {ID: "org-2", Slug: "other", Name: "Someone Else"},
		}}
	}
	if cfg.Events == nil {
		cfg.Events = &stubEvents{events: map[string]domain.Event{
			"congress": {ID: "ev-1", OrganizerID: "org-1", Slug: "congress"},
			"gala":     {ID: "ev-2", OrganizerID: "org-1", Slug: "gala"},
		}}
	}
	return NewRouter(cfg)
}

func doRequest(t *testing.T, handler http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterAuthAndScoping(t *testing.T) {
	t.Parallel()

	handler := testRouter(t, RouterConfig{})

	tests := []struct {
		name           string
		method         string
		target         string
		token          string
		body           string
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "health needs no token",
			method:         http.MethodGet,
			target:         "/healthz",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown token",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/",
			token:          "wrong-token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "organizer detail",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/",
			token:          "good-token",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"slug":"demo"`,
		},
		{
			name:           "unknown organizer hides behind 403",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/nope/",
			token:          "good-token",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "foreign organizer hides behind 403",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/other/",
			token:          "good-token",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "event detail",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/events/congress/",
			token:          "good-token",
			expectedStatus: http.StatusOK,
			expectedSubstr: `"slug":"congress"`,
		},
		{
			name:           "unknown event in visible organizer is 404",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/events/nope/",
			token:          "good-token",
			expectedStatus: http.StatusNotFound,
		},
		{
			// Same answer as an unknown slug, so a limited token cannot
			// tell which events exist.
			name:           "event outside the team limit list is 404",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/events/gala/",
			token:          "limited-token",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown event for a limited token is 404",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/events/nope/",
			token:          "limited-token",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "event inside the limit list stays visible",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo/events/congress/",
			token:          "limited-token",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "write without the permission flag is 403",
			method:         http.MethodPatch,
			target:         "/api/v1/organizers/demo/events/congress/",
			token:          "readonly-token",
			body:           `{"live":true}`,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "missing trailing slash is not routed",
			method:         http.MethodGet,
			target:         "/api/v1/organizers/demo",
			token:          "good-token",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown path",
			method:         http.MethodGet,
			target:         "/api/v2/whatever",
			token:          "good-token",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := doRequest(t, handler, tt.method, tt.target, tt.token, tt.body)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (body %q)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

type stubPositions struct {
	positions []domain.Position
	total     int
	err       error
}

func (s *stubPositions) CreatePosition(_ context.Context, _ string, _ app.PositionInput) (domain.Position, error) {
	if len(s.positions) == 0 {
		return domain.Position{}, s.err
	}
	return s.positions[0], s.err
}

func (s *stubPositions) GetPosition(_ context.Context, _, _ string) (domain.Position, error) {
	if s.err != nil {
		return domain.Position{}, s.err
	}
	return s.positions[0], nil
}

func (s *stubPositions) ListPositions(_ context.Context, _, _ string, _ app.Page) ([]domain.Position, int, error) {
	return s.positions, s.total, s.err
}

func (s *stubPositions) DeletePosition(_ context.Context, _, _ string) error { return s.err }

func TestListPaginationEnvelope(t *testing.T) {
	t.Parallel()

	pagePositions := make([]domain.Position, app.PageSize)
	for i := range pagePositions {
		pagePositions[i] = domain.Position{ID: "pos", Secret: "s", ItemID: "item-1"}
	}
	handler := testRouter(t, RouterConfig{
		Positions: &stubPositions{positions: pagePositions, total: 120},
	})

	rec := doRequest(t, handler, http.MethodGet,
		"/api/v1/organizers/demo/events/congress/orderpositions/?page=2", "good-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %q)", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"count":120`, `page=3`, `page=1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got %q", want, body)
		}
	}
}
