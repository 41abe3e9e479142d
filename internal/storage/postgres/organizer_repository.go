package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type OrganizerRepository struct {
	pool *pgxpool.Pool
}

func NewOrganizerRepository(pool *pgxpool.Pool) *OrganizerRepository {
	return &OrganizerRepository{pool: pool}
}

func (r *OrganizerRepository) GetBySlug(ctx context.Context, slug string) (domain.Organizer, error) {
	const q = `SELECT id, slug, name FROM organizers WHERE slug = $1`
	var o domain.Organizer
	err := queryRow(ctx, r.pool, q, slug).Scan(&o.ID, &o.Slug, &o.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Organizer{}, domain.ErrOrganizerNotFound
		}
		return domain.Organizer{}, fmt.Errorf("get organizer: %w", err)
	}
	return o, nil
}

func (r *OrganizerRepository) List(ctx context.Context, ids []string, limit, offset int) ([]domain.Organizer, int, error) {
	const countQ = `SELECT COUNT(*) FROM organizers WHERE id = ANY($1)`
	var total int
	if err := queryRow(ctx, r.pool, countQ, ids).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count organizers: %w", err)
	}

	const q = `SELECT id, slug, name FROM organizers WHERE id = ANY($1) ORDER BY slug LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, ids, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Organizer, 0)
	for rows.Next() {
		var o domain.Organizer
		if err := rows.Scan(&o.ID, &o.Slug, &o.Name); err != nil {
			return nil, 0, fmt.Errorf("scan organizer: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (r *OrganizerRepository) UpdateName(ctx context.Context, id, name string) error {
	const stmt = `UPDATE organizers SET name = $2 WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, id, name)
	if err != nil {
		return fmt.Errorf("update organizer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrganizerNotFound
	}
	return nil
}
