package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type fakeWebhookRepo struct {
	mu         sync.Mutex
	hooks      map[string]domain.Webhook
	deliveries map[string]*domain.WebhookDelivery
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{
		hooks:      make(map[string]domain.Webhook),
		deliveries: make(map[string]*domain.WebhookDelivery),
	}
}

func (f *fakeWebhookRepo) Create(_ context.Context, w domain.Webhook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[w.ID] = w
	return nil
}

func (f *fakeWebhookRepo) Get(_ context.Context, organizerID, id string) (domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.hooks[id]
	if !ok || w.OrganizerID != organizerID {
		return domain.Webhook{}, domain.ErrWebhookNotFound
	}
	return w, nil
}

func (f *fakeWebhookRepo) GetByID(_ context.Context, id string) (domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.hooks[id]
	if !ok {
		return domain.Webhook{}, domain.ErrWebhookNotFound
	}
	return w, nil
}

func (f *fakeWebhookRepo) List(_ context.Context, organizerID string, limit, offset int) ([]domain.Webhook, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Webhook
	for _, w := range f.hooks {
		if w.OrganizerID == organizerID {
			out = append(out, w)
		}
	}
	return out, len(out), nil
}

func (f *fakeWebhookRepo) ListEnabled(_ context.Context, organizerID string) ([]domain.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Webhook
	for _, w := range f.hooks {
		if w.OrganizerID == organizerID && w.Enabled {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) Update(_ context.Context, w domain.Webhook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.hooks[w.ID]; !ok {
		return domain.ErrWebhookNotFound
	}
	f.hooks[w.ID] = w
	return nil
}

func (f *fakeWebhookRepo) Disable(_ context.Context, organizerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.hooks[id]
	if !ok || w.OrganizerID != organizerID {
		return domain.ErrWebhookNotFound
	}
	w.Enabled = false
	f.hooks[id] = w
	return nil
}

func (f *fakeWebhookRepo) EnqueueDelivery(_ context.Context, d domain.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := d
	f.deliveries[d.ID] = &cp
	return nil
}

func (f *fakeWebhookRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WebhookDelivery
	for _, d := range f.deliveries {
		if len(out) >= limit {
			break
		}
		if d.Status == domain.DeliveryStatusPending && !d.NextAttempt.After(now) {
			d.NextAttempt = now.Add(time.Minute)
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) CompleteDelivery(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	d.Status = domain.DeliveryStatusSuccess
	return nil
}

func (f *fakeWebhookRepo) RetryDelivery(_ context.Context, id string, attempts int, next time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	d.Attempts = attempts
	d.NextAttempt = next
	d.LastError = lastError
	return nil
}

func (f *fakeWebhookRepo) FailDelivery(_ context.Context, id string, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	d.Status = domain.DeliveryStatusFailed
	d.LastError = lastError
	return nil
}

func (f *fakeWebhookRepo) delivery(id string) domain.WebhookDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.deliveries[id]
}

func (f *fakeWebhookRepo) deliveryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deliveries)
}

func TestWebhookService_Notify(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeWebhookRepo()
	repo.hooks["wh-match"] = domain.Webhook{
		ID: "wh-match", OrganizerID: "org-1", Enabled: true, AllEvents: true,
		ActionTypes: []string{"checkin.created"},
	}
	repo.hooks["wh-other-action"] = domain.Webhook{
		ID: "wh-other-action", OrganizerID: "org-1", Enabled: true, AllEvents: true,
		ActionTypes: []string{"event.live.activated"},
	}
	repo.hooks["wh-disabled"] = domain.Webhook{
		ID: "wh-disabled", OrganizerID: "org-1", Enabled: false, AllEvents: true,
	}
	svc := NewWebhookService(repo, clock.NewFixed(now), nil, nil)

	err := svc.Notify(context.Background(), "org-1", "ev-1", Notification{
		Organizer: "org-1", Event: "ev-1", Action: "checkin.created",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := repo.deliveryCount(); got != 1 {
		t.Fatalf("expected 1 queued delivery, got %d", got)
	}
	for _, d := range repo.deliveries {
		if d.WebhookID != "wh-match" {
			t.Fatalf("delivery queued for %s, want wh-match", d.WebhookID)
		}
		if !d.NextAttempt.Equal(now) {
			t.Fatalf("next attempt = %v, want now", d.NextAttempt)
		}
	}
}

func TestWebhookService_DispatchDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("delivers and signs the payload", func(t *testing.T) {
		var gotBody []byte
		var gotSig string
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotSig = r.Header.Get("X-Webhook-Signature")
			w.WriteHeader(http.StatusOK)
		}))
		defer target.Close()

		repo := newFakeWebhookRepo()
		repo.hooks["wh-1"] = domain.Webhook{
			ID: "wh-1", OrganizerID: "org-1", Enabled: true, AllEvents: true,
			TargetURL: target.URL, Secret: "hook-secret",
		}
		svc := NewWebhookService(repo, clock.NewFixed(now), target.Client(), nil)

		if err := svc.Notify(context.Background(), "org-1", "ev-1", Notification{
			Organizer: "org-1", Event: "ev-1", Action: "checkin.created",
		}); err != nil {
			t.Fatalf("notify: %v", err)
		}
		if err := svc.DispatchDue(context.Background()); err != nil {
			t.Fatalf("dispatch: %v", err)
		}

		mac := hmac.New(sha256.New, []byte("hook-secret"))
		mac.Write(gotBody)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		if gotSig != want {
			t.Fatalf("signature = %q, want %q", gotSig, want)
		}

		for id := range repo.deliveries {
			if d := repo.delivery(id); d.Status != domain.DeliveryStatusSuccess {
				t.Fatalf("delivery status = %q, want success", d.Status)
			}
		}
	})

	t.Run("failure schedules a retry with backoff", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer target.Close()

		repo := newFakeWebhookRepo()
		repo.hooks["wh-1"] = domain.Webhook{
			ID: "wh-1", OrganizerID: "org-1", Enabled: true, AllEvents: true,
			TargetURL: target.URL, Secret: "s",
		}
		svc := NewWebhookService(repo, clock.NewFixed(now), target.Client(), nil)

		if err := svc.Notify(context.Background(), "org-1", "", Notification{
			Organizer: "org-1", Action: "giftcard.transacted",
		}); err != nil {
			t.Fatalf("notify: %v", err)
		}
		if err := svc.DispatchDue(context.Background()); err != nil {
			t.Fatalf("dispatch: %v", err)
		}

		for id := range repo.deliveries {
			d := repo.delivery(id)
			if d.Status != domain.DeliveryStatusPending {
				t.Fatalf("status = %q, want pending for retry", d.Status)
			}
			if d.Attempts != 1 {
				t.Fatalf("attempts = %d, want 1", d.Attempts)
			}
			if !d.NextAttempt.Equal(now.Add(30 * time.Second)) {
				t.Fatalf("next attempt = %v, want base backoff", d.NextAttempt)
			}
			if d.LastError == "" {
				t.Fatalf("expected last error to be recorded")
			}
		}
	})

	t.Run("exhausted attempts fail permanently", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer target.Close()

		repo := newFakeWebhookRepo()
		repo.hooks["wh-1"] = domain.Webhook{
			ID: "wh-1", OrganizerID: "org-1", Enabled: true, AllEvents: true,
			TargetURL: target.URL, Secret: "s",
		}
		repo.deliveries["d-1"] = &domain.WebhookDelivery{
			ID: "d-1", WebhookID: "wh-1", Action: "checkin.created",
			Payload: []byte(`{}`), Status: domain.DeliveryStatusPending,
			Attempts: maxDeliveryAttempts - 1, NextAttempt: now,
		}
		svc := NewWebhookService(repo, clock.NewFixed(now), target.Client(), nil)

		if err := svc.DispatchDue(context.Background()); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if d := repo.delivery("d-1"); d.Status != domain.DeliveryStatusFailed {
			t.Fatalf("status = %q, want failed", d.Status)
		}
	})

	t.Run("deliveries of disabled webhooks are dropped", func(t *testing.T) {
		repo := newFakeWebhookRepo()
		repo.hooks["wh-1"] = domain.Webhook{ID: "wh-1", OrganizerID: "org-1", Enabled: false}
		repo.deliveries["d-1"] = &domain.WebhookDelivery{
			ID: "d-1", WebhookID: "wh-1", Payload: []byte(`{}`),
			Status: domain.DeliveryStatusPending, NextAttempt: now,
		}
		svc := NewWebhookService(repo, clock.NewFixed(now), nil, nil)

		if err := svc.DispatchDue(context.Background()); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if d := repo.delivery("d-1"); d.Status != domain.DeliveryStatusFailed {
			t.Fatalf("status = %q, want failed", d.Status)
		}
	})
}

func TestWebhookService_DeleteDisables(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeWebhookRepo()
	repo.hooks["wh-1"] = domain.Webhook{ID: "wh-1", OrganizerID: "org-1", Enabled: true}
	svc := NewWebhookService(repo, clock.NewFixed(now), nil, nil)

	if err := svc.Delete(context.Background(), "org-1", "wh-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	w, ok := repo.hooks["wh-1"]
	if !ok {
		t.Fatalf("webhook row must survive deletion")
	}
	if w.Enabled {
		t.Fatalf("webhook must be disabled after deletion")
	}
}
