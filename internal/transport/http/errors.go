package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tessera-live/tessera/internal/domain"
)

const (
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeValidationError    = "validation_error"
	codeConflict           = "conflict"
	codeGone               = "gone"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeFieldErrors renders a validation failure as a field-to-messages map,
// e.g. {"value": ["The gift card does not have sufficient credit..."]}.
func writeFieldErrors(w http.ResponseWriter, status int, fields map[string][]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(fields)
}

// respondError translates service errors into HTTP responses. Handlers only
// special-case errors whose response body differs from the standard shape.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrEventLive),
		errors.Is(err, domain.ErrTaxRuleInUse),
		errors.Is(err, domain.ErrVoucherRedeemed),
		errors.Is(err, domain.ErrGiftCardUsed):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, domain.ErrOrganizerNotFound),
		errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrSubEventNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrQuotaNotFound),
		errors.Is(err, domain.ErrTaxRuleNotFound),
		errors.Is(err, domain.ErrVoucherNotFound),
		errors.Is(err, domain.ErrDiscountNotFound),
		errors.Is(err, domain.ErrGiftCardNotFound),
		errors.Is(err, domain.ErrPositionNotFound),
		errors.Is(err, domain.ErrListNotFound),
		errors.Is(err, domain.ErrTeamNotFound),
		errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrWebhookNotFound),
		errors.Is(err, domain.ErrExportNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, domain.ErrLockNotAvailable):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientCredit):
		writeFieldErrors(w, http.StatusConflict, map[string][]string{
			"value": {"The gift card does not have sufficient credit for this operation."},
		})
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidSlug),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrSlugTaken),
		errors.Is(err, domain.ErrCodeTaken),
		errors.Is(err, domain.ErrSecretTaken),
		errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrVoucherNotUsable),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrNonceRequired),
		errors.Is(err, domain.ErrUnknownExportFormat),
		errors.Is(err, domain.ErrInvalidMoney):
		writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
	case errors.Is(err, domain.ErrExportFailed):
		writeError(w, http.StatusGone, codeGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
