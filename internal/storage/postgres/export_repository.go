package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type ExportRepository struct {
	pool *pgxpool.Pool
}

func NewExportRepository(pool *pgxpool.Pool) *ExportRepository {
	return &ExportRepository{pool: pool}
}

const exportColumns = `id, organizer_id, event_id, provider, status, object_key, file_name, error, created_at, completed_at`

func scanExport(row pgx.Row) (domain.Export, error) {
	var e domain.Export
	err := row.Scan(&e.ID, &e.OrganizerID, &e.EventID, &e.Provider, &e.Status,
		&e.ObjectKey, &e.FileName, &e.Error, &e.CreatedAt, &e.CompletedAt)
	return e, err
}

func (r *ExportRepository) Create(ctx context.Context, e domain.Export) error {
	const stmt = `
INSERT INTO exports (id, organizer_id, event_id, provider, status, object_key, file_name, error, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := exec(ctx, r.pool, stmt, e.ID, e.OrganizerID, e.EventID, e.Provider, e.Status,
		e.ObjectKey, e.FileName, e.Error, e.CreatedAt, e.CompletedAt)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	return nil
}

func (r *ExportRepository) Get(ctx context.Context, organizerID, id string) (domain.Export, error) {
	q := `SELECT ` + exportColumns + ` FROM exports WHERE organizer_id = $1 AND id = $2`
	e, err := scanExport(queryRow(ctx, r.pool, q, organizerID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Export{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Export{}, domain.ErrExportNotFound
		}
		return domain.Export{}, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

// ClaimNext moves the oldest waiting export to running in a single statement,
// so two workers never pick up the same job.
func (r *ExportRepository) ClaimNext(ctx context.Context) (*domain.Export, error) {
	const stmt = `
UPDATE exports
SET status = 'running'
WHERE id = (
	SELECT id FROM exports
	WHERE status = 'waiting'
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + exportColumns
	e, err := scanExport(queryRow(ctx, r.pool, stmt))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claim export: %w", err)
	}
	return &e, nil
}

func (r *ExportRepository) MarkDone(ctx context.Context, id, objectKey string, completedAt time.Time) error {
	const stmt = `UPDATE exports SET status = 'done', object_key = $2, completed_at = $3 WHERE id = $1`
	_, err := exec(ctx, r.pool, stmt, id, objectKey, completedAt)
	if err != nil {
		return fmt.Errorf("mark export done: %w", err)
	}
	return nil
}

func (r *ExportRepository) MarkFailed(ctx context.Context, id, message string) error {
	const stmt = `UPDATE exports SET status = 'failed', error = $2 WHERE id = $1`
	_, err := exec(ctx, r.pool, stmt, id, message)
	if err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}
