package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type PositionsService interface {
	CreatePosition(ctx context.Context, eventID string, in app.PositionInput) (domain.Position, error)
	GetPosition(ctx context.Context, eventID, id string) (domain.Position, error)
	ListPositions(ctx context.Context, eventID, secret string, page app.Page) ([]domain.Position, int, error)
	DeletePosition(ctx context.Context, eventID, id string) error
}

type positionsHandler struct {
	svc   PositionsService
	scope *scope
}

type positionJSON struct {
	ID           string       `json:"id"`
	Secret       string       `json:"secret"`
	Item         string       `json:"item"`
	SubEvent     *string      `json:"subevent"`
	Variation    string       `json:"variation"`
	AttendeeName string       `json:"attendee_name"`
	Price        domain.Money `json:"price"`
	Voucher      *string      `json:"voucher"`
}

func positionToJSON(p domain.Position) positionJSON {
	return positionJSON{
		ID:           p.ID,
		Secret:       p.Secret,
		Item:         p.ItemID,
		SubEvent:     p.SubEventID,
		Variation:    p.Variation,
		AttendeeName: p.AttendeeName,
		Price:        p.Price,
		Voucher:      p.VoucherID,
	}
}

func (h *positionsHandler) list(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	positions, total, err := h.svc.ListPositions(r.Context(), ev.ID, r.URL.Query().Get("secret"), page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]positionJSON, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionToJSON(p))
	}
	writeList(w, r, page, total, out)
}

func (h *positionsHandler) detail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}
	p, err := h.svc.GetPosition(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionToJSON(p))
}

type positionRequest struct {
	Secret       string       `json:"secret"`
	Item         string       `json:"item"`
	SubEvent     *string      `json:"subevent"`
	Variation    string       `json:"variation"`
	AttendeeName string       `json:"attendee_name"`
	Price        domain.Money `json:"price"`
	Voucher      string       `json:"voucher"`
}

func (h *positionsHandler) create(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}

	var req positionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	p, err := h.svc.CreatePosition(r.Context(), ev.ID, app.PositionInput{
		Secret:       req.Secret,
		ItemID:       req.Item,
		SubEventID:   req.SubEvent,
		Variation:    req.Variation,
		AttendeeName: req.AttendeeName,
		Price:        req.Price,
		VoucherCode:  req.Voucher,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, positionToJSON(p))
}

func (h *positionsHandler) delete(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canViewOrders); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.DeletePosition(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
