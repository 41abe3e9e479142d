package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type WebhookRepository struct {
	pool *pgxpool.Pool
}

func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

const webhookColumns = `id, organizer_id, enabled, target_url, secret, all_events, limit_event_ids, action_types`

func scanWebhook(row pgx.Row) (domain.Webhook, error) {
	var w domain.Webhook
	err := row.Scan(&w.ID, &w.OrganizerID, &w.Enabled, &w.TargetURL, &w.Secret,
		&w.AllEvents, &w.LimitEventIDs, &w.ActionTypes)
	return w, err
}

func (r *WebhookRepository) Create(ctx context.Context, w domain.Webhook) error {
	const stmt = `
INSERT INTO webhooks (id, organizer_id, enabled, target_url, secret, all_events, limit_event_ids, action_types)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := exec(ctx, r.pool, stmt, w.ID, w.OrganizerID, w.Enabled, w.TargetURL, w.Secret,
		w.AllEvents, w.LimitEventIDs, w.ActionTypes)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Get(ctx context.Context, organizerID, id string) (domain.Webhook, error) {
	q := `SELECT ` + webhookColumns + ` FROM webhooks WHERE organizer_id = $1 AND id = $2`
	w, err := scanWebhook(queryRow(ctx, r.pool, q, organizerID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Webhook{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Webhook{}, domain.ErrWebhookNotFound
		}
		return domain.Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (domain.Webhook, error) {
	q := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`
	w, err := scanWebhook(queryRow(ctx, r.pool, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Webhook{}, domain.ErrWebhookNotFound
		}
		return domain.Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (r *WebhookRepository) List(ctx context.Context, organizerID string, limit, offset int) ([]domain.Webhook, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM webhooks WHERE organizer_id = $1`, organizerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count webhooks: %w", err)
	}

	q := `SELECT ` + webhookColumns + ` FROM webhooks WHERE organizer_id = $1 ORDER BY id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, organizerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Webhook, 0)
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

func (r *WebhookRepository) ListEnabled(ctx context.Context, organizerID string) ([]domain.Webhook, error) {
	q := `SELECT ` + webhookColumns + ` FROM webhooks WHERE organizer_id = $1 AND enabled ORDER BY id`
	rows, err := query(ctx, r.pool, q, organizerID)
	if err != nil {
		return nil, fmt.Errorf("list enabled webhooks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Webhook, 0)
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WebhookRepository) Update(ctx context.Context, w domain.Webhook) error {
	const stmt = `
UPDATE webhooks
SET enabled = $2, target_url = $3, all_events = $4, limit_event_ids = $5, action_types = $6
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, w.ID, w.Enabled, w.TargetURL, w.AllEvents, w.LimitEventIDs, w.ActionTypes)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWebhookNotFound
	}
	return nil
}

func (r *WebhookRepository) Disable(ctx context.Context, organizerID, id string) error {
	tag, err := exec(ctx, r.pool, `UPDATE webhooks SET enabled = false WHERE organizer_id = $1 AND id = $2`, organizerID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("disable webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWebhookNotFound
	}
	return nil
}

func (r *WebhookRepository) EnqueueDelivery(ctx context.Context, d domain.WebhookDelivery) error {
	const stmt = `
INSERT INTO webhook_deliveries (id, webhook_id, action, payload, status, attempts, next_attempt, last_error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := exec(ctx, r.pool, stmt, d.ID, d.WebhookID, d.Action, d.Payload, d.Status,
		d.Attempts, d.NextAttempt, d.LastError, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}
	return nil
}

// ClaimDue pushes the claimed rows' next_attempt into the future so concurrent
// dispatchers skip them; SKIP LOCKED keeps claimers from blocking each other.
func (r *WebhookRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	const stmt = `
UPDATE webhook_deliveries
SET next_attempt = $1
WHERE id IN (
	SELECT id FROM webhook_deliveries
	WHERE status = 'pending' AND next_attempt <= $2
	ORDER BY next_attempt
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
RETURNING id, webhook_id, action, payload, status, attempts, next_attempt, last_error, created_at`
	rows, err := query(ctx, r.pool, stmt, now.Add(time.Minute), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WebhookDelivery, 0)
	for rows.Next() {
		var d domain.WebhookDelivery
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Action, &d.Payload, &d.Status,
			&d.Attempts, &d.NextAttempt, &d.LastError, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *WebhookRepository) CompleteDelivery(ctx context.Context, id string) error {
	_, err := exec(ctx, r.pool, `UPDATE webhook_deliveries SET status = 'success' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("complete delivery: %w", err)
	}
	return nil
}

func (r *WebhookRepository) RetryDelivery(ctx context.Context, id string, attempts int, next time.Time, lastError string) error {
	const stmt = `UPDATE webhook_deliveries SET attempts = $2, next_attempt = $3, last_error = $4 WHERE id = $1`
	_, err := exec(ctx, r.pool, stmt, id, attempts, next, lastError)
	if err != nil {
		return fmt.Errorf("retry delivery: %w", err)
	}
	return nil
}

func (r *WebhookRepository) FailDelivery(ctx context.Context, id string, lastError string) error {
	const stmt = `UPDATE webhook_deliveries SET status = 'failed', last_error = $2 WHERE id = $1`
	_, err := exec(ctx, r.pool, stmt, id, lastError)
	if err != nil {
		return fmt.Errorf("fail delivery: %w", err)
	}
	return nil
}
