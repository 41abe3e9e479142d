package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type DiscountRepository struct {
	pool *pgxpool.Pool
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

const discountColumns = `id, event_id, internal_name, active, position, condition_min_count, condition_all_products, condition_limit_products, benefit_percent, benefit_cheapest_n, subevent_mode`

func scanDiscount(row pgx.Row) (domain.Discount, error) {
	var d domain.Discount
	var mode string
	err := row.Scan(&d.ID, &d.EventID, &d.InternalName, &d.Active, &d.Position,
		&d.ConditionMinCount, &d.ConditionAllProducts, &d.ConditionLimitProductIDs,
		&d.BenefitDiscountMatchingPercent, &d.BenefitOnlyApplyToCheapestN, &mode)
	d.SubEventMode = domain.SubEventMode(mode)
	return d, err
}

func (r *DiscountRepository) Create(ctx context.Context, d domain.Discount) error {
	const stmt = `
INSERT INTO discounts (id, event_id, internal_name, active, position, condition_min_count, condition_all_products, condition_limit_products, benefit_percent, benefit_cheapest_n, subevent_mode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := exec(ctx, r.pool, stmt, d.ID, d.EventID, d.InternalName, d.Active, d.Position,
		d.ConditionMinCount, d.ConditionAllProducts, d.ConditionLimitProductIDs,
		d.BenefitDiscountMatchingPercent, d.BenefitOnlyApplyToCheapestN, string(d.SubEventMode))
	if err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	return nil
}

func (r *DiscountRepository) Get(ctx context.Context, eventID, id string) (domain.Discount, error) {
	q := `SELECT ` + discountColumns + ` FROM discounts WHERE event_id = $1 AND id = $2`
	d, err := scanDiscount(queryRow(ctx, r.pool, q, eventID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Discount{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Discount{}, domain.ErrDiscountNotFound
		}
		return domain.Discount{}, fmt.Errorf("get discount: %w", err)
	}
	return d, nil
}

func (r *DiscountRepository) List(ctx context.Context, eventID string, limit, offset int) ([]domain.Discount, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM discounts WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}

	q := `SELECT ` + discountColumns + ` FROM discounts WHERE event_id = $1 ORDER BY position, id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Discount, 0)
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan discount: %w", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *DiscountRepository) Update(ctx context.Context, d domain.Discount) error {
	const stmt = `
UPDATE discounts
SET internal_name = $2, active = $3, position = $4, condition_min_count = $5,
    condition_all_products = $6, condition_limit_products = $7, benefit_percent = $8,
    benefit_cheapest_n = $9, subevent_mode = $10
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, d.ID, d.InternalName, d.Active, d.Position,
		d.ConditionMinCount, d.ConditionAllProducts, d.ConditionLimitProductIDs,
		d.BenefitDiscountMatchingPercent, d.BenefitOnlyApplyToCheapestN, string(d.SubEventMode))
	if err != nil {
		return fmt.Errorf("update discount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDiscountNotFound
	}
	return nil
}

func (r *DiscountRepository) Delete(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM discounts WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete discount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDiscountNotFound
	}
	return nil
}
