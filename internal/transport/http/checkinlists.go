package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type CheckinService interface {
	CreateList(ctx context.Context, eventID string, in app.CheckinListInput) (domain.CheckinList, error)
	GetList(ctx context.Context, eventID, id string) (domain.CheckinList, error)
	ListLists(ctx context.Context, eventID string, page app.Page) ([]domain.CheckinList, int, error)
	ReplaceList(ctx context.Context, eventID, id string, in app.CheckinListInput) (domain.CheckinList, error)
	UpdateList(ctx context.Context, eventID, id string, in app.UpdateCheckinListInput) (domain.CheckinList, error)
	DeleteList(ctx context.Context, eventID, id string) error
	Status(ctx context.Context, eventID, id string) (domain.ListStatus, error)
	ListCheckins(ctx context.Context, eventID, listID string, page app.Page) ([]domain.Checkin, int, error)
	Redeem(ctx context.Context, organizerID, eventID, listID, secret string, in app.RedeemInput) (app.RedeemResult, error)
}

type checkinListsHandler struct {
	svc   CheckinService
	scope *scope
}

type checkinListJSON struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	AllProducts    bool     `json:"all_products"`
	LimitProducts  []string `json:"limit_products"`
	SubEvent       *string  `json:"subevent"`
	IncludePending bool     `json:"include_pending"`
}

func checkinListToJSON(l domain.CheckinList) checkinListJSON {
	limit := l.LimitProductIDs
	if limit == nil {
		limit = []string{}
	}
	return checkinListJSON{
		ID:             l.ID,
		Name:           l.Name,
		AllProducts:    l.AllProducts,
		LimitProducts:  limit,
		SubEvent:       l.SubEventID,
		IncludePending: l.IncludePending,
	}
}

type checkinListRequest struct {
	Name           string   `json:"name"`
	AllProducts    *bool    `json:"all_products"`
	LimitProducts  []string `json:"limit_products"`
	SubEvent       *string  `json:"subevent"`
	IncludePending bool     `json:"include_pending"`
}

func (r checkinListRequest) input() app.CheckinListInput {
	allProducts := len(r.LimitProducts) == 0
	if r.AllProducts != nil {
		allProducts = *r.AllProducts
	}
	return app.CheckinListInput{
		Name:            r.Name,
		AllProducts:     allProducts,
		LimitProductIDs: r.LimitProducts,
		SubEventID:      r.SubEvent,
		IncludePending:  r.IncludePending,
	}
}

func (h *checkinListsHandler) list(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	lists, total, err := h.svc.ListLists(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]checkinListJSON, 0, len(lists))
	for _, l := range lists {
		out = append(out, checkinListToJSON(l))
	}
	writeList(w, r, page, total, out)
}

func (h *checkinListsHandler) detail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	l, err := h.svc.GetList(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkinListToJSON(l))
}

func (h *checkinListsHandler) create(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}

	var req checkinListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	l, err := h.svc.CreateList(r.Context(), ev.ID, req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkinListToJSON(l))
}

func (h *checkinListsHandler) put(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}

	var req checkinListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	l, err := h.svc.ReplaceList(r.Context(), ev.ID, r.PathValue("id"), req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkinListToJSON(l))
}

func (h *checkinListsHandler) patch(w http.ResponseWriter, r *http.Request) {
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

	var in app.UpdateCheckinListInput
	if err := body.unmarshal("name", &in.Name); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid name")
		return
	}
	if err := body.unmarshal("all_products", &in.AllProducts); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid all_products")
		return
	}
	if err := body.unmarshal("limit_products", &in.LimitProductIDs); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid limit_products")
		return
	}
	if body.has("subevent") {
		var ref *string
		if !body.isNull("subevent") {
			if err := body.unmarshal("subevent", &ref); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid subevent")
				return
			}
		}
		in.SubEventID = &ref
	}
	if err := body.unmarshal("include_pending", &in.IncludePending); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid include_pending")
		return
	}

	l, err := h.svc.UpdateList(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkinListToJSON(l))
}

func (h *checkinListsHandler) delete(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeEventSettings); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.DeleteList(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listStatusJSON struct {
	CheckinCount  int                  `json:"checkin_count"`
	PositionCount int                  `json:"position_count"`
	Items         []listStatusItemJSON `json:"items"`
}

type listStatusItemJSON struct {
	Item          string `json:"item"`
	CheckinCount  int    `json:"checkin_count"`
	PositionCount int    `json:"position_count"`
}

func (h *checkinListsHandler) status(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canCheckin); err != nil {
		respondError(w, err)
		return
	}
	st, err := h.svc.Status(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := listStatusJSON{
		CheckinCount:  st.CheckinCount,
		PositionCount: st.PositionCount,
		Items:         make([]listStatusItemJSON, 0, len(st.Items)),
	}
	for _, it := range st.Items {
		out.Items = append(out.Items, listStatusItemJSON{
			Item:          it.ItemID,
			CheckinCount:  it.CheckinCount,
			PositionCount: it.PositionCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type checkinJSON struct {
	ID       string             `json:"id"`
	Position string             `json:"position"`
	Type     domain.CheckinType `json:"type"`
	Datetime time.Time          `json:"datetime"`
	Forced   bool               `json:"forced"`
}

func (h *checkinListsHandler) listCheckins(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canCheckin); err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	checkins, total, err := h.svc.ListCheckins(r.Context(), ev.ID, r.PathValue("id"), page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]checkinJSON, 0, len(checkins))
	for _, c := range checkins {
		out = append(out, checkinJSON{
			ID:       c.ID,
			Position: c.PositionID,
			Type:     c.Type,
			Datetime: c.Datetime,
			Forced:   c.Forced,
		})
	}
	writeList(w, r, page, total, out)
}

type redeemRequest struct {
	Nonce    string             `json:"nonce"`
	Type     domain.CheckinType `json:"type"`
	Datetime *time.Time         `json:"datetime"`
	Force    bool               `json:"force"`
}

// redeem records a scan. Retries with the same nonce replay the stored
// result; a second scan with a new nonce is rejected unless forced.
func (h *checkinListsHandler) redeem(w http.ResponseWriter, r *http.Request) {
	org, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canCheckin); err != nil {
		respondError(w, err)
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	result, err := h.svc.Redeem(r.Context(), org.ID, ev.ID, r.PathValue("id"), r.PathValue("secret"), app.RedeemInput{
		Nonce:    req.Nonce,
		Type:     req.Type,
		Datetime: req.Datetime,
		Force:    req.Force,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotOnList):
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "reason": "product"})
		case errors.Is(err, domain.ErrAlreadyRedeemed):
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "reason": "already_redeemed"})
		default:
			respondError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "ok",
		"position": positionToJSON(result.Position),
	})
}
