package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type EventsService interface {
	Create(ctx context.Context, organizerID string, in app.CreateEventInput) (domain.Event, error)
	Get(ctx context.Context, organizerID, slug string) (domain.Event, error)
	List(ctx context.Context, organizerID string, page app.Page) ([]domain.Event, int, error)
	Update(ctx context.Context, organizerID, slug string, in app.UpdateEventInput) (domain.Event, error)
	Delete(ctx context.Context, organizerID, slug string) error

	CreateSubEvent(ctx context.Context, eventID string, in app.SubEventInput) (domain.SubEvent, error)
	GetSubEvent(ctx context.Context, eventID, id string) (domain.SubEvent, error)
	ListSubEvents(ctx context.Context, eventID string, page app.Page) ([]domain.SubEvent, int, error)
	UpdateSubEvent(ctx context.Context, eventID, id string, in app.UpdateSubEventInput) (domain.SubEvent, error)
	DeleteSubEvent(ctx context.Context, eventID, id string) error
}

type eventsHandler struct {
	svc   EventsService
	scope *scope
}

type eventJSON struct {
	Slug         string                 `json:"slug"`
	Name         domain.LocalizedString `json:"name"`
	Live         bool                   `json:"live"`
	Currency     string                 `json:"currency"`
	DateFrom     *time.Time             `json:"date_from"`
	DateTo       *time.Time             `json:"date_to"`
	PresaleStart *time.Time             `json:"presale_start"`
	PresaleEnd   *time.Time             `json:"presale_end"`
}

func eventToJSON(e domain.Event) eventJSON {
	return eventJSON{
		Slug:         e.Slug,
		Name:         e.Name,
		Live:         e.Live,
		Currency:     e.Currency,
		DateFrom:     e.DateFrom,
		DateTo:       e.DateTo,
		PresaleStart: e.PresaleStart,
		PresaleEnd:   e.PresaleEnd,
	}
}

func (h *eventsHandler) list(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	events, total, err := h.svc.List(r.Context(), org.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	team, _ := TeamFrom(r.Context())
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		if !team.HasEvent(e.ID) {
			continue
		}
		out = append(out, eventToJSON(e))
	}
	writeList(w, r, page, total, out)
}

func (h *eventsHandler) detail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventToJSON(ev))
}

type createEventRequest struct {
	Slug         string                 `json:"slug"`
	Name         domain.LocalizedString `json:"name"`
	Live         bool                   `json:"live"`
	Currency     string                 `json:"currency"`
	DateFrom     *time.Time             `json:"date_from"`
	DateTo       *time.Time             `json:"date_to"`
	PresaleStart *time.Time             `json:"presale_start"`
	PresaleEnd   *time.Time             `json:"presale_end"`
}

func (h *eventsHandler) create(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	ev, err := h.svc.Create(r.Context(), org.ID, app.CreateEventInput{
		Slug:         req.Slug,
		Name:         req.Name,
		Currency:     req.Currency,
		Live:         req.Live,
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		PresaleStart: req.PresaleStart,
		PresaleEnd:   req.PresaleEnd,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventToJSON(ev))
}

func (h *eventsHandler) patch(w http.ResponseWriter, r *http.Request) {
	org, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}

	body, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	var in app.UpdateEventInput
	if err := body.unmarshal("name", &in.Name); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid name")
		return
	}
	if err := body.unmarshal("live", &in.Live); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid live")
		return
	}
	if err := body.unmarshal("currency", &in.Currency); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid currency")
		return
	}
	if err := body.unmarshal("date_from", &in.DateFrom); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid date_from")
		return
	}
	if err := body.unmarshal("date_to", &in.DateTo); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid date_to")
		return
	}
	if err := body.unmarshal("presale_start", &in.PresaleStart); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid presale_start")
		return
	}
	if err := body.unmarshal("presale_end", &in.PresaleEnd); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid presale_end")
		return
	}

	updated, err := h.svc.Update(r.Context(), org.ID, ev.Slug, in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventToJSON(updated))
}

func (h *eventsHandler) delete(w http.ResponseWriter, r *http.Request) {
	org, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), org.ID, ev.Slug); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type subEventJSON struct {
	ID       string                 `json:"id"`
	Name     domain.LocalizedString `json:"name"`
	Active   bool                   `json:"active"`
	DateFrom *time.Time             `json:"date_from"`
	DateTo   *time.Time             `json:"date_to"`
}

func subEventToJSON(s domain.SubEvent) subEventJSON {
	return subEventJSON{ID: s.ID, Name: s.Name, Active: s.Active, DateFrom: s.DateFrom, DateTo: s.DateTo}
}

func (h *eventsHandler) listSubEvents(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	subs, total, err := h.svc.ListSubEvents(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]subEventJSON, 0, len(subs))
	for _, s := range subs {
		out = append(out, subEventToJSON(s))
	}
	writeList(w, r, page, total, out)
}

func (h *eventsHandler) subEventDetail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	sub, err := h.svc.GetSubEvent(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subEventToJSON(sub))
}

type subEventRequest struct {
	Name     domain.LocalizedString `json:"name"`
	Active   bool                   `json:"active"`
	DateFrom *time.Time             `json:"date_from"`
	DateTo   *time.Time             `json:"date_to"`
}

func (h *eventsHandler) createSubEvent(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}

	var req subEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	sub, err := h.svc.CreateSubEvent(r.Context(), ev.ID, app.SubEventInput{
		Name:     req.Name,
		Active:   req.Active,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subEventToJSON(sub))
}

func (h *eventsHandler) patchSubEvent(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}

	body, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	var in app.UpdateSubEventInput
	if err := body.unmarshal("name", &in.Name); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid name")
		return
	}
	if err := body.unmarshal("active", &in.Active); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid active")
		return
	}
	if err := body.unmarshal("date_from", &in.DateFrom); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid date_from")
		return
	}
	if err := body.unmarshal("date_to", &in.DateTo); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid date_to")
		return
	}

	sub, err := h.svc.UpdateSubEvent(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subEventToJSON(sub))
}

func (h *eventsHandler) deleteSubEvent(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.DeleteSubEvent(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
