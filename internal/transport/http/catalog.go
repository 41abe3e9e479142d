package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type CatalogService interface {
	CreateItem(ctx context.Context, eventID string, in app.ItemInput) (domain.Item, error)
	GetItem(ctx context.Context, eventID, id string) (domain.Item, error)
	ListItems(ctx context.Context, eventID string, page app.Page) ([]domain.Item, int, error)
	UpdateItem(ctx context.Context, eventID, id string, in app.UpdateItemInput) (domain.Item, error)
	DeleteItem(ctx context.Context, eventID, id string) error

	CreateQuota(ctx context.Context, eventID string, in app.QuotaInput) (domain.Quota, error)
	GetQuota(ctx context.Context, eventID, id string) (domain.Quota, error)
	ListQuotas(ctx context.Context, eventID string, page app.Page) ([]domain.Quota, int, error)
	UpdateQuota(ctx context.Context, eventID, id string, in app.UpdateQuotaInput) (domain.Quota, error)
	DeleteQuota(ctx context.Context, eventID, id string) error
	Availability(ctx context.Context, eventID, id string) (domain.QuotaAvailability, error)

	CreateTaxRule(ctx context.Context, eventID string, in app.TaxRuleInput) (domain.TaxRule, error)
	GetTaxRule(ctx context.Context, eventID, id string) (domain.TaxRule, error)
	ListTaxRules(ctx context.Context, eventID string, page app.Page) ([]domain.TaxRule, int, error)
	ReplaceTaxRule(ctx context.Context, eventID, id string, in app.TaxRuleInput) (domain.TaxRule, error)
	UpdateTaxRule(ctx context.Context, eventID, id string, in app.UpdateTaxRuleInput) (domain.TaxRule, error)
	DeleteTaxRule(ctx context.Context, eventID, id string) error
}

type catalogHandler struct {
	svc   CatalogService
	scope *scope
}

type itemJSON struct {
	ID           string                 `json:"id"`
	Name         domain.LocalizedString `json:"name"`
	DefaultPrice domain.Money           `json:"default_price"`
	Active       bool                   `json:"active"`
	Admission    bool                   `json:"admission"`
	Position     int                    `json:"position"`
	TaxRule      *string                `json:"tax_rule"`
}

func itemToJSON(i domain.Item) itemJSON {
	return itemJSON{
		ID:           i.ID,
		Name:         i.Name,
		DefaultPrice: i.DefaultPrice,
		Active:       i.Active,
		Admission:    i.Admission,
		Position:     i.Position,
		TaxRule:      i.TaxRuleID,
	}
}

func (h *catalogHandler) listItems(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	items, total, err := h.svc.ListItems(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]itemJSON, 0, len(items))
	for _, i := range items {
		out = append(out, itemToJSON(i))
	}
	writeList(w, r, page, total, out)
}

func (h *catalogHandler) itemDetail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	item, err := h.svc.GetItem(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToJSON(item))
}

type itemRequest struct {
	Name         domain.LocalizedString `json:"name"`
	DefaultPrice domain.Money           `json:"default_price"`
	Active       *bool                  `json:"active"`
	Admission    bool                   `json:"admission"`
	Position     int                    `json:"position"`
	TaxRule      *string                `json:"tax_rule"`
}

func (h *catalogHandler) createItem(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	item, err := h.svc.CreateItem(r.Context(), ev.ID, app.ItemInput{
		Name:         req.Name,
		DefaultPrice: req.DefaultPrice,
		Active:       active,
		Admission:    req.Admission,
		Position:     req.Position,
		TaxRuleID:    req.TaxRule,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemToJSON(item))
}

func (h *catalogHandler) patchItem(w http.ResponseWriter, r *http.Request) {
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

	var in app.UpdateItemInput
	if err := body.unmarshal("name", &in.Name); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid name")
		return
	}
	if err := body.unmarshal("default_price", &in.DefaultPrice); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid default_price")
		return
	}
	if err := body.unmarshal("active", &in.Active); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid active")
		return
	}
	if err := body.unmarshal("admission", &in.Admission); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid admission")
		return
	}
	if err := body.unmarshal("position", &in.Position); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid position")
		return
	}
	if body.has("tax_rule") {
		var ref *string
		if !body.isNull("tax_rule") {
			if err := body.unmarshal("tax_rule", &ref); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid tax_rule")
				return
			}
		}
		in.TaxRuleID = &ref
	}

	item, err := h.svc.UpdateItem(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemToJSON(item))
}

func (h *catalogHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.DeleteItem(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quotaJSON struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Size  *int     `json:"size"`
	Items []string `json:"items"`
}

func quotaToJSON(q domain.Quota) quotaJSON {
	items := q.ItemIDs
	if items == nil {
		items = []string{}
	}
	return quotaJSON{ID: q.ID, Name: q.Name, Size: q.Size, Items: items}
}

func (h *catalogHandler) listQuotas(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	quotas, total, err := h.svc.ListQuotas(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]quotaJSON, 0, len(quotas))
	for _, q := range quotas {
		out = append(out, quotaToJSON(q))
	}
	writeList(w, r, page, total, out)
}

func (h *catalogHandler) quotaDetail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	quota, err := h.svc.GetQuota(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaToJSON(quota))
}

type quotaRequest struct {
	Name  string   `json:"name"`
	Size  *int     `json:"size"`
	Items []string `json:"items"`
}

func (h *catalogHandler) createQuota(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var req quotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	quota, err := h.svc.CreateQuota(r.Context(), ev.ID, app.QuotaInput{
		Name:    req.Name,
		Size:    req.Size,
		ItemIDs: req.Items,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quotaToJSON(quota))
}

func (h *catalogHandler) patchQuota(w http.ResponseWriter, r *http.Request) {
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

	var in app.UpdateQuotaInput
	if err := body.unmarshal("name", &in.Name); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid name")
		return
	}
	if body.has("size") {
		var size *int
		if !body.isNull("size") {
			if err := body.unmarshal("size", &size); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid size")
				return
			}
		}
		in.Size = &size
	}
	if err := body.unmarshal("items", &in.ItemIDs); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid items")
		return
	}

	quota, err := h.svc.UpdateQuota(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaToJSON(quota))
}

func (h *catalogHandler) deleteQuota(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.DeleteQuota(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type availabilityJSON struct {
	Available       bool `json:"available"`
	AvailableNumber *int `json:"available_number"`
	TotalSize       *int `json:"total_size"`
	PendingVouchers int  `json:"pending_vouchers"`
	UsedPositions   int  `json:"used_positions"`
}

func (h *catalogHandler) quotaAvailability(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	av, err := h.svc.Availability(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityJSON{
		Available:       av.Available,
		AvailableNumber: av.AvailableNumber,
		TotalSize:       av.TotalSize,
		PendingVouchers: av.PendingVouchers,
		UsedPositions:   av.UsedPositions,
	})
}

type taxRuleJSON struct {
	ID               string                 `json:"id"`
	Name             domain.LocalizedString `json:"name"`
	Rate             domain.Percent         `json:"rate"`
	PriceIncludesTax bool                   `json:"price_includes_tax"`
}

func taxRuleToJSON(t domain.TaxRule) taxRuleJSON {
	return taxRuleJSON{ID: t.ID, Name: t.Name, Rate: t.Rate, PriceIncludesTax: t.PriceIncludesTax}
}

func (h *catalogHandler) listTaxRules(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	rules, total, err := h.svc.ListTaxRules(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]taxRuleJSON, 0, len(rules))
	for _, t := range rules {
		out = append(out, taxRuleToJSON(t))
	}
	writeList(w, r, page, total, out)
}

func (h *catalogHandler) taxRuleDetail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	rule, err := h.svc.GetTaxRule(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxRuleToJSON(rule))
}

type taxRuleRequest struct {
	Name             domain.LocalizedString `json:"name"`
	Rate             domain.Percent         `json:"rate"`
	PriceIncludesTax bool                   `json:"price_includes_tax"`
}

func (r taxRuleRequest) input() app.TaxRuleInput {
	return app.TaxRuleInput{Name: r.Name, Rate: r.Rate, PriceIncludesTax: r.PriceIncludesTax}
}

func (h *catalogHandler) createTaxRule(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var req taxRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	rule, err := h.svc.CreateTaxRule(r.Context(), ev.ID, req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taxRuleToJSON(rule))
}

// putTaxRule is a full replacement: omitted fields reset to their zero
// values rather than being preserved.
func (h *catalogHandler) putTaxRule(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var req taxRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	rule, err := h.svc.ReplaceTaxRule(r.Context(), ev.ID, r.PathValue("id"), req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxRuleToJSON(rule))
}

func (h *catalogHandler) patchTaxRule(w http.ResponseWriter, r *http.Request) {
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

	var in app.UpdateTaxRuleInput
	if err := body.unmarshal("name", &in.Name); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid name")
		return
	}
	if err := body.unmarshal("rate", &in.Rate); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid rate")
		return
	}
	if err := body.unmarshal("price_includes_tax", &in.PriceIncludesTax); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid price_includes_tax")
		return
	}

	rule, err := h.svc.UpdateTaxRule(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taxRuleToJSON(rule))
}

func (h *catalogHandler) deleteTaxRule(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}
	if err := h.svc.DeleteTaxRule(r.Context(), ev.ID, r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
