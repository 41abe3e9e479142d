package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type DiscountsService interface {
	Create(ctx context.Context, eventID string, in app.DiscountInput) (domain.Discount, error)
	Get(ctx context.Context, eventID, id string) (domain.Discount, error)
	List(ctx context.Context, eventID string, page app.Page) ([]domain.Discount, int, error)
	Update(ctx context.Context, eventID, id string, in app.UpdateDiscountInput) (domain.Discount, error)
	Delete(ctx context.Context, eventID, id string) error
	Preview(ctx context.Context, eventID, id string, lines []domain.DiscountLine) ([]domain.Money, error)
}

type discountsHandler struct {
	svc   DiscountsService
	scope *scope
}

type discountJSON struct {
	ID                             string              `json:"id"`
	InternalName                   string              `json:"internal_name"`
	Active                         bool                `json:"active"`
	Position                       int                 `json:"position"`
	ConditionMinCount              int                 `json:"condition_min_count"`
	ConditionAllProducts           bool                `json:"condition_all_products"`
	ConditionLimitProducts         []string            `json:"condition_limit_products"`
	BenefitDiscountMatchingPercent domain.Percent      `json:"benefit_discount_matching_percent"`
	BenefitOnlyApplyToCheapestN    int                 `json:"benefit_only_apply_to_cheapest_n_matches"`
	SubEventMode                   domain.SubEventMode `json:"subevent_mode"`
}

func discountToJSON(d domain.Discount) discountJSON {
	limit := d.ConditionLimitProductIDs
	if limit == nil {
		limit = []string{}
	}
	return discountJSON{
		ID:                             d.ID,
		InternalName:                   d.InternalName,
		Active:                         d.Active,
		Position:                       d.Position,
		ConditionMinCount:              d.ConditionMinCount,
		ConditionAllProducts:           d.ConditionAllProducts,
		ConditionLimitProducts:         limit,
		BenefitDiscountMatchingPercent: d.BenefitDiscountMatchingPercent,
		BenefitOnlyApplyToCheapestN:    d.BenefitOnlyApplyToCheapestN,
		SubEventMode:                   d.SubEventMode,
	}
}

type discountRequest struct {
	InternalName                   string              `json:"internal_name"`
	Active                         *bool               `json:"active"`
	Position                       int                 `json:"position"`
	ConditionMinCount              int                 `json:"condition_min_count"`
	ConditionAllProducts           *bool               `json:"condition_all_products"`
	ConditionLimitProducts         []string            `json:"condition_limit_products"`
	BenefitDiscountMatchingPercent domain.Percent      `json:"benefit_discount_matching_percent"`
	BenefitOnlyApplyToCheapestN    int                 `json:"benefit_only_apply_to_cheapest_n_matches"`
	SubEventMode                   domain.SubEventMode `json:"subevent_mode"`
}

func (h *discountsHandler) list(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	discounts, total, err := h.svc.List(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]discountJSON, 0, len(discounts))
	for _, d := range discounts {
		out = append(out, discountToJSON(d))
	}
	writeList(w, r, page, total, out)
}

func (h *discountsHandler) detail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	d, err := h.svc.Get(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, discountToJSON(d))
}

func (h *discountsHandler) create(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	allProducts := true
	if req.ConditionAllProducts != nil {
		allProducts = *req.ConditionAllProducts
	}
	mode := req.SubEventMode
	if mode == "" {
		mode = domain.SubEventModeMixed
	}

	d, err := h.svc.Create(r.Context(), ev.ID, app.DiscountInput{
		InternalName:                   req.InternalName,
		Active:                         active,
		Position:                       req.Position,
		ConditionMinCount:              req.ConditionMinCount,
		ConditionAllProducts:           allProducts,
		ConditionLimitProductIDs:       req.ConditionLimitProducts,
		BenefitDiscountMatchingPercent: req.BenefitDiscountMatchingPercent,
		BenefitOnlyApplyToCheapestN:    req.BenefitOnlyApplyToCheapestN,
		SubEventMode:                   mode,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, discountToJSON(d))
}

func (h *discountsHandler) patch(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	body, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	var in app.UpdateDiscountInput
	fields := []struct {
		key string
		dst any
	}{
		{"internal_name", &in.InternalName},
		{"active", &in.Active},
		{"position", &in.Position},
		{"condition_min_count", &in.ConditionMinCount},
		{"condition_all_products", &in.ConditionAllProducts},
		{"condition_limit_products", &in.ConditionLimitProductIDs},
		{"benefit_discount_matching_percent", &in.BenefitDiscountMatchingPercent},
		{"benefit_only_apply_to_cheapest_n_matches", &in.BenefitOnlyApplyToCheapestN},
		{"subevent_mode", &in.SubEventMode},
	}
	for _, f := range fields {
		if err := body.unmarshal(f.key, f.dst); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid "+f.key)
			return
		}
	}

	d, err := h.svc.Update(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, discountToJSON(d))
}

func (h *discountsHandler) delete(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type previewLine struct {
	Item     string       `json:"item"`
	SubEvent string       `json:"subevent"`
	Price    domain.Money `json:"price"`
}

// preview applies one discount's rules to submitted lines without persisting
// anything and returns the per-line discounted prices.
func (h *discountsHandler) preview(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		Lines []previewLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	lines := make([]domain.DiscountLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.DiscountLine{
			ItemID:     l.Item,
			SubEventID: l.SubEvent,
			Price:      l.Price,
		})
	}

	prices, err := h.svc.Preview(r.Context(), ev.ID, r.PathValue("id"), lines)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Money{"prices": prices})
}
