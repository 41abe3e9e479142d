package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type TeamsService interface {
	Create(ctx context.Context, organizerID string, in app.TeamInput) (domain.Team, error)
	Get(ctx context.Context, organizerID, id string) (domain.Team, error)
	List(ctx context.Context, organizerID string, page app.Page) ([]domain.Team, int, error)
	Update(ctx context.Context, organizerID, id string, in app.TeamInput) (domain.Team, error)
	Delete(ctx context.Context, organizerID, id string) error
	CreateToken(ctx context.Context, organizerID, teamID, name string) (domain.APIToken, string, error)
	ListTokens(ctx context.Context, organizerID, teamID string) ([]domain.APIToken, error)
	RevokeToken(ctx context.Context, organizerID, teamID, id string) error
}

type teamsHandler struct {
	svc   TeamsService
	scope *scope
}

type teamJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AllEvents   bool     `json:"all_events"`
	LimitEvents []string `json:"limit_events"`

	CanChangeOrganizerSettings bool `json:"can_change_organizer_settings"`
	CanChangeEventSettings     bool `json:"can_change_event_settings"`
	CanChangeItems             bool `json:"can_change_items"`
	CanManageGiftCards         bool `json:"can_manage_gift_cards"`
	CanCheckin                 bool `json:"can_checkin"`
	CanViewOrders              bool `json:"can_view_orders"`
}

func teamToJSON(t domain.Team) teamJSON {
	limit := t.LimitEventIDs
	if limit == nil {
		limit = []string{}
	}
	return teamJSON{
		ID:                         t.ID,
		Name:                       t.Name,
		AllEvents:                  t.AllEvents,
		LimitEvents:                limit,
		CanChangeOrganizerSettings: t.CanChangeOrganizerSettings,
		CanChangeEventSettings:     t.CanChangeEventSettings,
		CanChangeItems:             t.CanChangeItems,
		CanManageGiftCards:         t.CanManageGiftCards,
		CanCheckin:                 t.CanCheckin,
		CanViewOrders:              t.CanViewOrders,
	}
}

type teamRequest struct {
	Name        string   `json:"name"`
	AllEvents   bool     `json:"all_events"`
	LimitEvents []string `json:"limit_events"`

	CanChangeOrganizerSettings bool `json:"can_change_organizer_settings"`
	CanChangeEventSettings     bool `json:"can_change_event_settings"`
	CanChangeItems             bool `json:"can_change_items"`
	CanManageGiftCards         bool `json:"can_manage_gift_cards"`
	CanCheckin                 bool `json:"can_checkin"`
	CanViewOrders              bool `json:"can_view_orders"`
}

func (r teamRequest) input() app.TeamInput {
	return app.TeamInput{
		Name:                       r.Name,
		AllEvents:                  r.AllEvents,
		LimitEventIDs:              r.LimitEvents,
		CanChangeOrganizerSettings: r.CanChangeOrganizerSettings,
		CanChangeEventSettings:     r.CanChangeEventSettings,
		CanChangeItems:             r.CanChangeItems,
		CanManageGiftCards:         r.CanManageGiftCards,
		CanCheckin:                 r.CanCheckin,
		CanViewOrders:              r.CanViewOrders,
	}
}

func (h *teamsHandler) list(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	teams, total, err := h.svc.List(r.Context(), org.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]teamJSON, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamToJSON(t))
	}
	writeList(w, r, page, total, out)
}

func (h *teamsHandler) detail(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}
	t, err := h.svc.Get(r.Context(), org.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamToJSON(t))
}

func (h *teamsHandler) create(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}

	var req teamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	t, err := h.svc.Create(r.Context(), org.ID, req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, teamToJSON(t))
}

func (h *teamsHandler) patch(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}

	current, err := h.svc.Get(r.Context(), org.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	// Team updates merge onto the current state so PATCH callers can send
	// only the fields they change.
	req := teamRequest{
		Name:                       current.Name,
		AllEvents:                  current.AllEvents,
		LimitEvents:                current.LimitEventIDs,
		CanChangeOrganizerSettings: current.CanChangeOrganizerSettings,
		CanChangeEventSettings:     current.CanChangeEventSettings,
		CanChangeItems:             current.CanChangeItems,
		CanManageGiftCards:         current.CanManageGiftCards,
		CanCheckin:                 current.CanCheckin,
		CanViewOrders:              current.CanViewOrders,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	t, err := h.svc.Update(r.Context(), org.ID, current.ID, req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamToJSON(t))
}

func (h *teamsHandler) delete(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), org.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	// Token carries the plaintext key, present only in the create response.
	Token string `json:"token,omitempty"`
}

func (h *teamsHandler) listTokens(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}
	tokens, err := h.svc.ListTokens(r.Context(), org.ID, r.PathValue("team"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]tokenJSON, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, tokenJSON{ID: t.ID, Name: t.Name, Active: t.Active})
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(out), Results: out})
}

func (h *teamsHandler) createToken(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	tok, plaintext, err := h.svc.CreateToken(r.Context(), org.ID, r.PathValue("team"), req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenJSON{ID: tok.ID, Name: tok.Name, Active: tok.Active, Token: plaintext})
}

func (h *teamsHandler) revokeToken(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.RevokeToken(r.Context(), org.ID, r.PathValue("team"), r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
