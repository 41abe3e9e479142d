package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type GiftCardsService interface {
	Create(ctx context.Context, organizerID string, in app.GiftCardInput) (domain.GiftCard, error)
	Get(ctx context.Context, organizerID, id string) (domain.GiftCard, error)
	List(ctx context.Context, organizerID string, page app.Page) ([]domain.GiftCard, int, error)
	Update(ctx context.Context, organizerID, id string, in app.UpdateGiftCardInput) (domain.GiftCard, error)
	Delete(ctx context.Context, organizerID, id string) error
	Transact(ctx context.Context, organizerID, id string, in app.TransactInput) (domain.GiftCard, error)
	ListTransactions(ctx context.Context, organizerID, id string, page app.Page) ([]domain.GiftCardTransaction, int, error)
}

type giftCardsHandler struct {
	svc   GiftCardsService
	scope *scope
}

type giftCardJSON struct {
	ID         string       `json:"id"`
	Secret     string       `json:"secret"`
	Value      domain.Money `json:"value"`
	Currency   string       `json:"currency"`
	Testmode   bool         `json:"testmode"`
	Expires    *time.Time   `json:"expires"`
	Conditions string       `json:"conditions"`
}

func giftCardToJSON(c domain.GiftCard) giftCardJSON {
	return giftCardJSON{
		ID:         c.ID,
		Secret:     c.Secret,
		Value:      c.Value,
		Currency:   c.Currency,
		Testmode:   c.Testmode,
		Expires:    c.Expires,
		Conditions: c.Conditions,
	}
}

func (h *giftCardsHandler) list(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	cards, total, err := h.svc.List(r.Context(), org.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]giftCardJSON, 0, len(cards))
	for _, c := range cards {
		out = append(out, giftCardToJSON(c))
	}
	writeList(w, r, page, total, out)
}

func (h *giftCardsHandler) detail(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}
	c, err := h.svc.Get(r.Context(), org.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, giftCardToJSON(c))
}

type giftCardRequest struct {
	Secret     string       `json:"secret"`
	Currency   string       `json:"currency"`
	Testmode   bool         `json:"testmode"`
	Expires    *time.Time   `json:"expires"`
	Conditions string       `json:"conditions"`
	Value      domain.Money `json:"value"`
}

func (h *giftCardsHandler) create(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}

	var req giftCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	c, err := h.svc.Create(r.Context(), org.ID, app.GiftCardInput{
		Secret:     req.Secret,
		Currency:   req.Currency,
		Testmode:   req.Testmode,
		Expires:    req.Expires,
		Conditions: req.Conditions,
		Value:      req.Value,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, giftCardToJSON(c))
}

func (h *giftCardsHandler) patch(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}

	body, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	var in app.UpdateGiftCardInput
	if body.has("expires") {
		var expires *time.Time
		if !body.isNull("expires") {
			if err := body.unmarshal("expires", &expires); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid expires")
				return
			}
		}
		in.Expires = &expires
	}
	if err := body.unmarshal("conditions", &in.Conditions); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid conditions")
		return
	}

	c, err := h.svc.Update(r.Context(), org.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, giftCardToJSON(c))
}

func (h *giftCardsHandler) delete(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), org.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transact books a value change atomically against the card's balance. A
// change that would push the balance negative answers 409 with a field error.
func (h *giftCardsHandler) transact(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Value    domain.Money `json:"value"`
		Text     string       `json:"text"`
		Currency string       `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	c, err := h.svc.Transact(r.Context(), org.ID, r.PathValue("id"), app.TransactInput{
		Value:    req.Value,
		Text:     req.Text,
		Currency: req.Currency,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, giftCardToJSON(c))
}

type giftCardTransactionJSON struct {
	ID       string       `json:"id"`
	Value    domain.Money `json:"value"`
	Text     string       `json:"text"`
	Datetime time.Time    `json:"datetime"`
}

func (h *giftCardsHandler) listTransactions(w http.ResponseWriter, r *http.Request) {
	org, err := h.scope.organizer(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canManageGiftCards); err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	txs, total, err := h.svc.ListTransactions(r.Context(), org.ID, r.PathValue("id"), page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]giftCardTransactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, giftCardTransactionJSON{
			ID:       t.ID,
			Value:    t.Value,
			Text:     t.Text,
			Datetime: t.CreatedAt,
		})
	}
	writeList(w, r, page, total, out)
}
