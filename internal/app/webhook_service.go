package app

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type WebhookRepository interface {
	Create(ctx context.Context, w domain.Webhook) error
	Get(ctx context.Context, organizerID, id string) (domain.Webhook, error)
	GetByID(ctx context.Context, id string) (domain.Webhook, error)
	List(ctx context.Context, organizerID string, limit, offset int) ([]domain.Webhook, int, error)
	ListEnabled(ctx context.Context, organizerID string) ([]domain.Webhook, error)
	Update(ctx context.Context, w domain.Webhook) error
	// Disable performs the soft delete behind DELETE requests.
	Disable(ctx context.Context, organizerID, id string) error

	EnqueueDelivery(ctx context.Context, d domain.WebhookDelivery) error
	// ClaimDue atomically marks up to limit due pending deliveries as claimed
	// and returns them, so concurrent dispatchers never double-send.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error)
	CompleteDelivery(ctx context.Context, id string) error
	RetryDelivery(ctx context.Context, id string, attempts int, next time.Time, lastError string) error
	FailDelivery(ctx context.Context, id string, lastError string) error
}

type WebhookService struct {
	repo   WebhookRepository
	clock  clock.Clock
	client *http.Client
	logger *slog.Logger
}

const (
	maxDeliveryAttempts = 5
	deliveryBaseBackoff = 30 * time.Second
	dispatchBatchSize   = 20
)

func NewWebhookService(repo WebhookRepository, clk clock.Clock, client *http.Client, logger *slog.Logger) *WebhookService {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{repo: repo, clock: clk, client: client, logger: logger}
}

type WebhookInput struct {
	Enabled       bool
	TargetURL     string
	AllEvents     bool
	LimitEventIDs []string
	ActionTypes   []string
}

func (s *WebhookService) Create(ctx context.Context, organizerID string, in WebhookInput) (domain.Webhook, error) {
	if in.TargetURL == "" {
		return domain.Webhook{}, domain.ErrNameRequired
	}
	w := domain.Webhook{
		ID:            newID(),
		OrganizerID:   organizerID,
		Enabled:       in.Enabled,
		TargetURL:     in.TargetURL,
		Secret:        newSecret(24),
		AllEvents:     in.AllEvents,
		LimitEventIDs: in.LimitEventIDs,
		ActionTypes:   in.ActionTypes,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return domain.Webhook{}, err
	}
	return w, nil
}

func (s *WebhookService) Get(ctx context.Context, organizerID, id string) (domain.Webhook, error) {
	return s.repo.Get(ctx, organizerID, id)
}

func (s *WebhookService) List(ctx context.Context, organizerID string, page Page) ([]domain.Webhook, int, error) {
	return s.repo.List(ctx, organizerID, page.Limit(), page.Offset())
}

// Replace implements PUT semantics.
func (s *WebhookService) Replace(ctx context.Context, organizerID, id string, in WebhookInput) (domain.Webhook, error) {
	if in.TargetURL == "" {
		return domain.Webhook{}, domain.ErrNameRequired
	}
	w, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return domain.Webhook{}, err
	}
	w.Enabled = in.Enabled
	w.TargetURL = in.TargetURL
	w.AllEvents = in.AllEvents
	w.LimitEventIDs = in.LimitEventIDs
	w.ActionTypes = in.ActionTypes
	if err := s.repo.Update(ctx, w); err != nil {
		return domain.Webhook{}, err
	}
	return w, nil
}

type UpdateWebhookInput struct {
	Enabled       *bool
	TargetURL     *string
	AllEvents     *bool
	LimitEventIDs *[]string
	ActionTypes   *[]string
}

func (s *WebhookService) Update(ctx context.Context, organizerID, id string, in UpdateWebhookInput) (domain.Webhook, error) {
	w, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return domain.Webhook{}, err
	}
	if in.Enabled != nil {
		w.Enabled = *in.Enabled
	}
	if in.TargetURL != nil {
		if *in.TargetURL == "" {
			return domain.Webhook{}, domain.ErrNameRequired
		}
		w.TargetURL = *in.TargetURL
	}
	if in.AllEvents != nil {
		w.AllEvents = *in.AllEvents
	}
	if in.LimitEventIDs != nil {
		w.LimitEventIDs = *in.LimitEventIDs
	}
	if in.ActionTypes != nil {
		w.ActionTypes = *in.ActionTypes
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return domain.Webhook{}, err
	}
	return w, nil
}

// Delete disables the webhook instead of removing it, so delivery history
// stays intact.
func (s *WebhookService) Delete(ctx context.Context, organizerID, id string) error {
	if _, err := s.repo.Get(ctx, organizerID, id); err != nil {
		return err
	}
	return s.repo.Disable(ctx, organizerID, id)
}

// Notifier is the publishing side of the webhook pipeline. Services emit
// domain events through it; WebhookService implements it by queueing
// deliveries.
type Notifier interface {
	Notify(ctx context.Context, organizerID, eventID string, n Notification) error
}

// Notification is the payload template for webhook deliveries.
type Notification struct {
	Organizer string         `json:"organizer"`
	Event     string         `json:"event,omitempty"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
}

// Notify fans the notification out to every matching enabled webhook of the
// organizer. Deliveries are queued, not sent inline; the dispatcher picks
// them up.
func (s *WebhookService) Notify(ctx context.Context, organizerID, eventID string, n Notification) error {
	hooks, err := s.repo.ListEnabled(ctx, organizerID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	for _, hook := range hooks {
		if !hook.Matches(n.Action, eventID) {
			continue
		}
		payload := struct {
			NotificationID string `json:"notification_id"`
			Notification
		}{NotificationID: newID(), Notification: n}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		if err := s.repo.EnqueueDelivery(ctx, domain.WebhookDelivery{
			ID:          newID(),
			WebhookID:   hook.ID,
			Action:      n.Action,
			Payload:     body,
			Status:      domain.DeliveryStatusPending,
			NextAttempt: now,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// RunDispatcher delivers queued notifications until the context is canceled.
func (s *WebhookService) RunDispatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.DispatchDue(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("webhook dispatch failed", "error", err)
			}
		}
	}
}

// DispatchDue sends one batch of due deliveries.
func (s *WebhookService) DispatchDue(ctx context.Context) error {
	due, err := s.repo.ClaimDue(ctx, s.clock.Now(), dispatchBatchSize)
	if err != nil {
		return err
	}
	for _, d := range due {
		s.deliver(ctx, d)
	}
	return nil
}

func (s *WebhookService) deliver(ctx context.Context, d domain.WebhookDelivery) {
	hook, err := s.repo.GetByID(ctx, d.WebhookID)
	if err != nil {
		_ = s.repo.FailDelivery(ctx, d.ID, "webhook gone")
		return
	}
	if !hook.Enabled {
		_ = s.repo.FailDelivery(ctx, d.ID, "webhook disabled")
		return
	}

	err = s.post(ctx, hook, d.Payload)
	if err == nil {
		if cerr := s.repo.CompleteDelivery(ctx, d.ID); cerr != nil {
			s.logger.Error("complete delivery", "delivery", d.ID, "error", cerr)
		}
		return
	}

	attempts := d.Attempts + 1
	if attempts >= maxDeliveryAttempts {
		s.logger.Warn("webhook delivery failed permanently",
			"webhook", hook.ID, "action", d.Action, "error", err)
		_ = s.repo.FailDelivery(ctx, d.ID, err.Error())
		return
	}
	backoff := deliveryBaseBackoff * time.Duration(1<<(attempts-1))
	_ = s.repo.RetryDelivery(ctx, d.ID, attempts, s.clock.Now().Add(backoff), err.Error())
}

func (s *WebhookService) post(ctx context.Context, hook domain.Webhook, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.TargetURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signPayload(hook.Secret, payload))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("target returned status %d", resp.StatusCode)
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
