package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type OrganizersService interface {
	Get(ctx context.Context, slug string) (domain.Organizer, error)
	List(ctx context.Context, visibleIDs []string, page app.Page) ([]domain.Organizer, int, error)
	Update(ctx context.Context, slug string, in app.UpdateOrganizerInput) (domain.Organizer, error)
}

type organizersHandler struct {
	svc   OrganizersService
	scope *scope
}

type organizerJSON struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func organizerToJSON(o domain.Organizer) organizerJSON {
	return organizerJSON{Slug: o.Slug, Name: o.Name}
}

func (h *organizersHandler) list(w http.ResponseWriter, r *http.Request) {
	team, ok := TeamFrom(r.Context())
	if !ok {
		respondError(w, domain.ErrInvalidToken)
		return
	}
	page := pageFrom(r)
	orgs, total, err := h.svc.List(r.Context(), []string{team.OrganizerID}, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]organizerJSON, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, organizerToJSON(o))
	}
	writeList(w, r, page, total, out)
}

func (h *organizersHandler) detail(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, organizerToJSON(org))
}

func (h *organizersHandler) patch(w http.ResponseWriter, r *http.Request) {
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
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	updated, err := h.svc.Update(r.Context(), org.Slug, app.UpdateOrganizerInput{Name: req.Name})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, organizerToJSON(updated))
}
