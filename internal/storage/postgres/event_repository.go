package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, organizer_id, slug, name, live, currency, date_from, date_to, presale_start, presale_end, created_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Slug, &e.Name, &e.Live, &e.Currency,
		&e.DateFrom, &e.DateTo, &e.PresaleStart, &e.PresaleEnd, &e.CreatedAt)
	return e, err
}

func (r *EventRepository) Create(ctx context.Context, e domain.Event) error {
	const stmt = `
INSERT INTO events (id, organizer_id, slug, name, live, currency, date_from, date_to, presale_start, presale_end, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := exec(ctx, r.pool, stmt, e.ID, e.OrganizerID, e.Slug, e.Name, e.Live, e.Currency,
		e.DateFrom, e.DateTo, e.PresaleStart, e.PresaleEnd, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlugTaken
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetBySlug(ctx context.Context, organizerID, slug string) (domain.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 AND slug = $2`
	e, err := scanEvent(queryRow(ctx, r.pool, q, organizerID, slug))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Event{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) List(ctx context.Context, organizerID string, limit, offset int) ([]domain.Event, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM events WHERE organizer_id = $1`, organizerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	q := `SELECT ` + eventColumns + ` FROM events WHERE organizer_id = $1 ORDER BY date_from NULLS LAST, slug LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, organizerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *EventRepository) Update(ctx context.Context, e domain.Event) error {
	const stmt = `
UPDATE events
SET name = $2, live = $3, currency = $4, date_from = $5, date_to = $6, presale_start = $7, presale_end = $8
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, e.ID, e.Name, e.Live, e.Currency, e.DateFrom, e.DateTo, e.PresaleStart, e.PresaleEnd)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *EventRepository) CreateSubEvent(ctx context.Context, s domain.SubEvent) error {
	const stmt = `
INSERT INTO subevents (id, event_id, name, active, date_from, date_to)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := exec(ctx, r.pool, stmt, s.ID, s.EventID, s.Name, s.Active, s.DateFrom, s.DateTo)
	if err != nil {
		return fmt.Errorf("create subevent: %w", err)
	}
	return nil
}

func (r *EventRepository) GetSubEvent(ctx context.Context, eventID, id string) (domain.SubEvent, error) {
	const q = `SELECT id, event_id, name, active, date_from, date_to FROM subevents WHERE event_id = $1 AND id = $2`
	var s domain.SubEvent
	err := queryRow(ctx, r.pool, q, eventID, id).Scan(&s.ID, &s.EventID, &s.Name, &s.Active, &s.DateFrom, &s.DateTo)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.SubEvent{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.SubEvent{}, domain.ErrSubEventNotFound
		}
		return domain.SubEvent{}, fmt.Errorf("get subevent: %w", err)
	}
	return s, nil
}

func (r *EventRepository) ListSubEvents(ctx context.Context, eventID string, limit, offset int) ([]domain.SubEvent, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM subevents WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subevents: %w", err)
	}

	const q = `SELECT id, event_id, name, active, date_from, date_to FROM subevents WHERE event_id = $1 ORDER BY date_from NULLS LAST, id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list subevents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SubEvent, 0)
	for rows.Next() {
		var s domain.SubEvent
		if err := rows.Scan(&s.ID, &s.EventID, &s.Name, &s.Active, &s.DateFrom, &s.DateTo); err != nil {
			return nil, 0, fmt.Errorf("scan subevent: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *EventRepository) UpdateSubEvent(ctx context.Context, s domain.SubEvent) error {
	const stmt = `UPDATE subevents SET name = $2, active = $3, date_from = $4, date_to = $5 WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, s.ID, s.Name, s.Active, s.DateFrom, s.DateTo)
	if err != nil {
		return fmt.Errorf("update subevent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubEventNotFound
	}
	return nil
}

func (r *EventRepository) DeleteSubEvent(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM subevents WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete subevent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubEventNotFound
	}
	return nil
}
