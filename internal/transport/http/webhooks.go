package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type WebhooksService interface {
	Create(ctx context.Context, organizerID string, in app.WebhookInput) (domain.Webhook, error)
	Get(ctx context.Context, organizerID, id string) (domain.Webhook, error)
	List(ctx context.Context, organizerID string, page app.Page) ([]domain.Webhook, int, error)
	Replace(ctx context.Context, organizerID, id string, in app.WebhookInput) (domain.Webhook, error)
	Update(ctx context.Context, organizerID, id string, in app.UpdateWebhookInput) (domain.Webhook, error)
	Delete(ctx context.Context, organizerID, id string) error
}

type webhooksHandler struct {
	svc   WebhooksService
	scope *scope
}

type webhookJSON struct {
	ID          string   `json:"id"`
	Enabled     bool     `json:"enabled"`
	TargetURL   string   `json:"target_url"`
	AllEvents   bool     `json:"all_events"`
	LimitEvents []string `json:"limit_events"`
	ActionTypes []string `json:"action_types"`
}

func webhookToJSON(wh domain.Webhook) webhookJSON {
	limit := wh.LimitEventIDs
	if limit == nil {
		limit = []string{}
	}
	actions := wh.ActionTypes
	if actions == nil {
		actions = []string{}
	}
	return webhookJSON{
		ID:          wh.ID,
		Enabled:     wh.Enabled,
		TargetURL:   wh.TargetURL,
		AllEvents:   wh.AllEvents,
		LimitEvents: limit,
		ActionTypes: actions,
	}
}

type webhookRequest struct {
	Enabled     *bool    `json:"enabled"`
	TargetURL   string   `json:"target_url"`
	AllEvents   bool     `json:"all_events"`
	LimitEvents []string `json:"limit_events"`
	ActionTypes []string `json:"action_types"`
}

func (r webhookRequest) input() app.WebhookInput {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return app.WebhookInput{
		Enabled:       enabled,
		TargetURL:     r.TargetURL,
		AllEvents:     r.AllEvents,
		LimitEventIDs: r.LimitEvents,
		ActionTypes:   r.ActionTypes,
	}
}

func (h *webhooksHandler) list(w http.ResponseWriter, r *http.Request) {
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
	hooks, total, err := h.svc.List(r.Context(), org.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]webhookJSON, 0, len(hooks))
	for _, wh := range hooks {
		out = append(out, webhookToJSON(wh))
	}
	writeList(w, r, page, total, out)
}

func (h *webhooksHandler) detail(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}
	wh, err := h.svc.Get(r.Context(), org.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookToJSON(wh))
}

func (h *webhooksHandler) create(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	wh, err := h.svc.Create(r.Context(), org.ID, req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, webhookToJSON(wh))
}

func (h *webhooksHandler) put(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	wh, err := h.svc.Replace(r.Context(), org.ID, r.PathValue("id"), req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookToJSON(wh))
}

func (h *webhooksHandler) patch(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeOrganizerSettings); err != nil {
		respondError(w, err)
		return
	}

	body, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	var in app.UpdateWebhookInput
	if err := body.unmarshal("enabled", &in.Enabled); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid enabled")
		return
	}
	if err := body.unmarshal("target_url", &in.TargetURL); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid target_url")
		return
	}
	if err := body.unmarshal("all_events", &in.AllEvents); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid all_events")
		return
	}
	if err := body.unmarshal("limit_events", &in.LimitEventIDs); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid limit_events")
		return
	}
	if err := body.unmarshal("action_types", &in.ActionTypes); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid action_types")
		return
	}

	wh, err := h.svc.Update(r.Context(), org.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookToJSON(wh))
}

// delete disables the webhook instead of removing it, so delivery history
// stays intact.
func (h *webhooksHandler) delete(w http.ResponseWriter, r *http.Request) {
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
