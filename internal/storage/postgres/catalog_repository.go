package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

// CatalogRepository stores products, quotas and tax rules.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) CreateItem(ctx context.Context, item domain.Item) error {
	const stmt = `
INSERT INTO items (id, event_id, name, default_price, active, admission, position, tax_rule_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := exec(ctx, r.pool, stmt, item.ID, item.EventID, item.Name, item.DefaultPrice,
		item.Active, item.Admission, item.Position, item.TaxRuleID)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetItem(ctx context.Context, eventID, id string) (domain.Item, error) {
	const q = `
SELECT id, event_id, name, default_price, active, admission, position, tax_rule_id
FROM items WHERE event_id = $1 AND id = $2`
	var it domain.Item
	err := queryRow(ctx, r.pool, q, eventID, id).Scan(&it.ID, &it.EventID, &it.Name,
		&it.DefaultPrice, &it.Active, &it.Admission, &it.Position, &it.TaxRuleID)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Item{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (r *CatalogRepository) ListItems(ctx context.Context, eventID string, limit, offset int) ([]domain.Item, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM items WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	const q = `
SELECT id, event_id, name, default_price, active, admission, position, tax_rule_id
FROM items WHERE event_id = $1 ORDER BY position, id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Item, 0)
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.EventID, &it.Name, &it.DefaultPrice,
			&it.Active, &it.Admission, &it.Position, &it.TaxRuleID); err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (r *CatalogRepository) UpdateItem(ctx context.Context, item domain.Item) error {
	const stmt = `
UPDATE items
SET name = $2, default_price = $3, active = $4, admission = $5, position = $6, tax_rule_id = $7
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, item.ID, item.Name, item.DefaultPrice,
		item.Active, item.Admission, item.Position, item.TaxRuleID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *CatalogRepository) DeleteItem(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM items WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *CatalogRepository) CreateQuota(ctx context.Context, quota domain.Quota) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		const stmt = `INSERT INTO quotas (id, event_id, name, size) VALUES ($1, $2, $3, $4)`
		if _, err := exec(txCtx, r.pool, stmt, quota.ID, quota.EventID, quota.Name, quota.Size); err != nil {
			return fmt.Errorf("create quota: %w", err)
		}
		return r.replaceQuotaItems(txCtx, quota.ID, quota.ItemIDs)
	})
}

func (r *CatalogRepository) replaceQuotaItems(ctx context.Context, quotaID string, itemIDs []string) error {
	if _, err := exec(ctx, r.pool, `DELETE FROM quota_items WHERE quota_id = $1`, quotaID); err != nil {
		return fmt.Errorf("clear quota items: %w", err)
	}
	for _, itemID := range itemIDs {
		if _, err := exec(ctx, r.pool,
			`INSERT INTO quota_items (quota_id, item_id) VALUES ($1, $2)`, quotaID, itemID); err != nil {
			return fmt.Errorf("link quota item: %w", err)
		}
	}
	return nil
}

func (r *CatalogRepository) GetQuota(ctx context.Context, eventID, id string) (domain.Quota, error) {
	const q = `SELECT id, event_id, name, size FROM quotas WHERE event_id = $1 AND id = $2`
	var quota domain.Quota
	err := queryRow(ctx, r.pool, q, eventID, id).Scan(&quota.ID, &quota.EventID, &quota.Name, &quota.Size)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Quota{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Quota{}, domain.ErrQuotaNotFound
		}
		return domain.Quota{}, fmt.Errorf("get quota: %w", err)
	}
	if err := r.loadQuotaItems(ctx, &quota); err != nil {
		return domain.Quota{}, err
	}
	return quota, nil
}

func (r *CatalogRepository) loadQuotaItems(ctx context.Context, quota *domain.Quota) error {
	rows, err := query(ctx, r.pool, `SELECT item_id FROM quota_items WHERE quota_id = $1 ORDER BY item_id`, quota.ID)
	if err != nil {
		return fmt.Errorf("load quota items: %w", err)
	}
	defer rows.Close()
	quota.ItemIDs = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan quota item: %w", err)
		}
		quota.ItemIDs = append(quota.ItemIDs, id)
	}
	return rows.Err()
}

func (r *CatalogRepository) ListQuotas(ctx context.Context, eventID string, limit, offset int) ([]domain.Quota, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM quotas WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count quotas: %w", err)
	}

	rows, err := query(ctx, r.pool,
		`SELECT id, event_id, name, size FROM quotas WHERE event_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`,
		eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list quotas: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Quota, 0)
	for rows.Next() {
		var quota domain.Quota
		if err := rows.Scan(&quota.ID, &quota.EventID, &quota.Name, &quota.Size); err != nil {
			return nil, 0, fmt.Errorf("scan quota: %w", err)
		}
		out = append(out, quota)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if err := r.loadQuotaItems(ctx, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (r *CatalogRepository) UpdateQuota(ctx context.Context, quota domain.Quota) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		const stmt = `UPDATE quotas SET name = $2, size = $3 WHERE id = $1`
		tag, err := exec(txCtx, r.pool, stmt, quota.ID, quota.Name, quota.Size)
		if err != nil {
			return fmt.Errorf("update quota: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrQuotaNotFound
		}
		return r.replaceQuotaItems(txCtx, quota.ID, quota.ItemIDs)
	})
}

func (r *CatalogRepository) DeleteQuota(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM quotas WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete quota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuotaNotFound
	}
	return nil
}

// CountBlockingVouchers sums the unredeemed usages of valid quota-blocking
// vouchers.
func (r *CatalogRepository) CountBlockingVouchers(ctx context.Context, quotaID string, now time.Time) (int, error) {
	const q = `
SELECT COALESCE(SUM(max_usages - redeemed), 0)
FROM vouchers
WHERE quota_id = $1 AND block_quota AND redeemed < max_usages
  AND (valid_until IS NULL OR valid_until > $2)`
	var total int
	if err := queryRow(ctx, r.pool, q, quotaID, now).Scan(&total); err != nil {
		return 0, fmt.Errorf("count blocking vouchers: %w", err)
	}
	return total, nil
}

func (r *CatalogRepository) CountPositionsForItems(ctx context.Context, eventID string, itemIDs []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	const q = `SELECT COUNT(*) FROM positions WHERE event_id = $1 AND item_id = ANY($2)`
	var total int
	if err := queryRow(ctx, r.pool, q, eventID, itemIDs).Scan(&total); err != nil {
		return 0, fmt.Errorf("count positions: %w", err)
	}
	return total, nil
}

func (r *CatalogRepository) CreateTaxRule(ctx context.Context, rule domain.TaxRule) error {
	const stmt = `
INSERT INTO tax_rules (id, event_id, name, rate, price_includes_tax)
VALUES ($1, $2, $3, $4, $5)`
	_, err := exec(ctx, r.pool, stmt, rule.ID, rule.EventID, rule.Name, rule.Rate, rule.PriceIncludesTax)
	if err != nil {
		return fmt.Errorf("create tax rule: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetTaxRule(ctx context.Context, eventID, id string) (domain.TaxRule, error) {
	const q = `SELECT id, event_id, name, rate, price_includes_tax FROM tax_rules WHERE event_id = $1 AND id = $2`
	var rule domain.TaxRule
	err := queryRow(ctx, r.pool, q, eventID, id).Scan(&rule.ID, &rule.EventID, &rule.Name, &rule.Rate, &rule.PriceIncludesTax)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.TaxRule{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.TaxRule{}, domain.ErrTaxRuleNotFound
		}
		return domain.TaxRule{}, fmt.Errorf("get tax rule: %w", err)
	}
	return rule, nil
}

func (r *CatalogRepository) ListTaxRules(ctx context.Context, eventID string, limit, offset int) ([]domain.TaxRule, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM tax_rules WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tax rules: %w", err)
	}

	rows, err := query(ctx, r.pool,
		`SELECT id, event_id, name, rate, price_includes_tax FROM tax_rules WHERE event_id = $1 ORDER BY id LIMIT $2 OFFSET $3`,
		eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list tax rules: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TaxRule, 0)
	for rows.Next() {
		var rule domain.TaxRule
		if err := rows.Scan(&rule.ID, &rule.EventID, &rule.Name, &rule.Rate, &rule.PriceIncludesTax); err != nil {
			return nil, 0, fmt.Errorf("scan tax rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, total, rows.Err()
}

func (r *CatalogRepository) UpdateTaxRule(ctx context.Context, rule domain.TaxRule) error {
	const stmt = `UPDATE tax_rules SET name = $2, rate = $3, price_includes_tax = $4 WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, rule.ID, rule.Name, rule.Rate, rule.PriceIncludesTax)
	if err != nil {
		return fmt.Errorf("update tax rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaxRuleNotFound
	}
	return nil
}

func (r *CatalogRepository) DeleteTaxRule(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM tax_rules WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete tax rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaxRuleNotFound
	}
	return nil
}

func (r *CatalogRepository) TaxRuleInUse(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM items WHERE tax_rule_id = $1)`
	var inUse bool
	if err := queryRow(ctx, r.pool, q, id).Scan(&inUse); err != nil {
		return false, fmt.Errorf("check tax rule usage: %w", err)
	}
	return inUse, nil
}
