package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type VouchersService interface {
	Create(ctx context.Context, eventID string, in app.VoucherInput) (domain.Voucher, error)
	BatchCreate(ctx context.Context, eventID string, ins []app.VoucherInput) ([]domain.Voucher, error)
	Get(ctx context.Context, eventID, id string) (domain.Voucher, error)
	List(ctx context.Context, eventID string, page app.Page) ([]domain.Voucher, int, error)
	Update(ctx context.Context, eventID, id string, in app.UpdateVoucherInput) (domain.Voucher, error)
	Delete(ctx context.Context, eventID, id string) error
}

type vouchersHandler struct {
	svc   VouchersService
	scope *scope
}

type voucherJSON struct {
	ID         string           `json:"id"`
	Code       string           `json:"code"`
	MaxUsages  int              `json:"max_usages"`
	Redeemed   int              `json:"redeemed"`
	PriceMode  domain.PriceMode `json:"price_mode"`
	Value      domain.Money     `json:"value"`
	Item       *string          `json:"item"`
	Quota      *string          `json:"quota"`
	BlockQuota bool             `json:"block_quota"`
	ValidUntil *time.Time       `json:"valid_until"`
	Comment    string           `json:"comment"`
}

func voucherToJSON(v domain.Voucher) voucherJSON {
	return voucherJSON{
		ID:         v.ID,
		Code:       v.Code,
		MaxUsages:  v.MaxUsages,
		Redeemed:   v.Redeemed,
		PriceMode:  v.PriceMode,
		Value:      v.Value,
		Item:       v.ItemID,
		Quota:      v.QuotaID,
		BlockQuota: v.BlockQuota,
		ValidUntil: v.ValidUntil,
		Comment:    v.Comment,
	}
}

type voucherRequest struct {
	Code       string           `json:"code"`
	MaxUsages  int              `json:"max_usages"`
	PriceMode  domain.PriceMode `json:"price_mode"`
	Value      domain.Money     `json:"value"`
	Item       *string          `json:"item"`
	Quota      *string          `json:"quota"`
	BlockQuota bool             `json:"block_quota"`
	ValidUntil *time.Time       `json:"valid_until"`
	Comment    string           `json:"comment"`
}

func (r voucherRequest) input() app.VoucherInput {
	return app.VoucherInput{
		Code:       r.Code,
		MaxUsages:  r.MaxUsages,
		PriceMode:  r.PriceMode,
		Value:      r.Value,
		ItemID:     r.Item,
		QuotaID:    r.Quota,
		BlockQuota: r.BlockQuota,
		ValidUntil: r.ValidUntil,
		Comment:    r.Comment,
	}
}

func (h *vouchersHandler) list(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	page := pageFrom(r)
	vouchers, total, err := h.svc.List(r.Context(), ev.ID, page)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]voucherJSON, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, voucherToJSON(v))
	}
	writeList(w, r, page, total, out)
}

func (h *vouchersHandler) detail(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	v, err := h.svc.Get(r.Context(), ev.ID, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherToJSON(v))
}

func (h *vouchersHandler) create(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var req voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	v, err := h.svc.Create(r.Context(), ev.ID, req.input())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, voucherToJSON(v))
}

// batchCreate creates all submitted vouchers or none: quota checks run over
// the whole batch before anything is written.
func (h *vouchersHandler) batchCreate(w http.ResponseWriter, r *http.Request) {
	_, ev, err := h.scope.event(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := requirePermission(r, canChangeItems); err != nil {
		respondError(w, err)
		return
	}

	var reqs []voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	ins := make([]app.VoucherInput, 0, len(reqs))
	for _, req := range reqs {
		ins = append(ins, req.input())
	}
	vouchers, err := h.svc.BatchCreate(r.Context(), ev.ID, ins)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]voucherJSON, 0, len(vouchers))
	for _, v := range vouchers {
		out = append(out, voucherToJSON(v))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *vouchersHandler) patch(w http.ResponseWriter, r *http.Request) {
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

	var in app.UpdateVoucherInput
	if err := body.unmarshal("max_usages", &in.MaxUsages); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid max_usages")
		return
	}
	if err := body.unmarshal("price_mode", &in.PriceMode); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid price_mode")
		return
	}
	if err := body.unmarshal("value", &in.Value); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid value")
		return
	}
	if body.has("item") {
		var ref *string
		if !body.isNull("item") {
			if err := body.unmarshal("item", &ref); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid item")
				return
			}
		}
		in.ItemID = &ref
	}
	if body.has("quota") {
		var ref *string
		if !body.isNull("quota") {
			if err := body.unmarshal("quota", &ref); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid quota")
				return
			}
		}
		in.QuotaID = &ref
	}
	if err := body.unmarshal("block_quota", &in.BlockQuota); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid block_quota")
		return
	}
	if body.has("valid_until") {
		var until *time.Time
		if !body.isNull("valid_until") {
			if err := body.unmarshal("valid_until", &until); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid valid_until")
				return
			}
		}
		in.ValidUntil = &until
	}
	if err := body.unmarshal("comment", &in.Comment); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid comment")
		return
	}

	v, err := h.svc.Update(r.Context(), ev.ID, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherToJSON(v))
}

func (h *vouchersHandler) delete(w http.ResponseWriter, r *http.Request) {
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
