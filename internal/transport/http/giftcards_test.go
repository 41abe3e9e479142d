package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/tessera-live/tessera/internal/app"
	"github.com/tessera-live/tessera/internal/domain"
)

type stubGiftCards struct {
	card domain.GiftCard
	err  error
}

func (s *stubGiftCards) Create(_ context.Context, _ string, _ app.GiftCardInput) (domain.GiftCard, error) {
	return s.card, s.err
}

func (s *stubGiftCards) Get(_ context.Context, _, _ string) (domain.GiftCard, error) {
	return s.card, s.err
}

func (s *stubGiftCards) List(_ context.Context, _ string, _ app.Page) ([]domain.GiftCard, int, error) {
	return []domain.GiftCard{s.card}, 1, s.err
}

func (s *stubGiftCards) Update(_ context.Context, _, _ string, _ app.UpdateGiftCardInput) (domain.GiftCard, error) {
	return s.card, s.err
}

func (s *stubGiftCards) Delete(_ context.Context, _, _ string) error { return s.err }

func (s *stubGiftCards) Transact(_ context.Context, _, _ string, _ app.TransactInput) (domain.GiftCard, error) {
	return s.card, s.err
}

func (s *stubGiftCards) ListTransactions(_ context.Context, _, _ string, _ app.Page) ([]domain.GiftCardTransaction, int, error) {
	return nil, 0, s.err
}

func TestHandleGiftCardTransact(t *testing.T) {
	t.Parallel()

	const target = "/api/v1/organizers/demo/giftcards/gc-1/transact/"

	tests := []struct {
		name           string
		token          string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			token:          "good-token",
			body:           `{"value":"-20.00","text":"order ABC"}`,
			expectedStatus: http.StatusOK,
			expectedSubstr: `"value":"30.00"`,
		},
		{
			name:           "insufficient credit is a field error",
			token:          "good-token",
			body:           `{"value":"-100.00"}`,
			serviceErr:     domain.ErrInsufficientCredit,
			expectedStatus: http.StatusConflict,
			expectedSubstr: `"value":["The gift card does not have sufficient credit`,
		},
		{
			name:           "mismatched currency is a validation error",
			token:          "good-token",
			body:           `{"value":"-1.00","currency":"USD"}`,
			serviceErr:     domain.ErrCurrencyMismatch,
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: `"code":"validation_error"`,
		},
		{
			name:           "unknown card",
			token:          "good-token",
			body:           `{"value":"-1.00"}`,
			serviceErr:     domain.ErrGiftCardNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "gift card permission required",
			token:          "readonly-token",
			body:           `{"value":"-1.00"}`,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "invalid json",
			token:          "good-token",
			body:           `{"value":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := testRouter(t, RouterConfig{
				GiftCards: &stubGiftCards{
					card: domain.GiftCard{ID: "gc-1", Secret: "GC-SECRET", Value: 3000, Currency: "EUR"},
					err:  tt.serviceErr,
				},
			})
			rec := doRequest(t, handler, http.MethodPost, target, tt.token, tt.body)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (body %q)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}
