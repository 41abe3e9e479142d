package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type VoucherRepository struct {
	pool *pgxpool.Pool
}

func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

func (r *VoucherRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// LockQuota takes the quota row lock without waiting, so a concurrent writer
// surfaces as a retryable conflict instead of queueing behind the lock.
func (r *VoucherRepository) LockQuota(ctx context.Context, eventID, quotaID string) (domain.Quota, error) {
	const q = `SELECT id, event_id, name, size FROM quotas WHERE id = $1 AND event_id = $2 FOR UPDATE NOWAIT`
	var quota domain.Quota
	err := queryRow(ctx, r.pool, q, quotaID, eventID).Scan(&quota.ID, &quota.EventID, &quota.Name, &quota.Size)
	if err != nil {
		if isLockNotAvailable(err) {
			return domain.Quota{}, domain.ErrLockNotAvailable
		}
		if isInvalidUUID(err) {
			return domain.Quota{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Quota{}, domain.ErrQuotaNotFound
		}
		return domain.Quota{}, fmt.Errorf("lock quota: %w", err)
	}

	rows, err := query(ctx, r.pool, `SELECT item_id FROM quota_items WHERE quota_id = $1`, quota.ID)
	if err != nil {
		return domain.Quota{}, fmt.Errorf("load quota items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Quota{}, fmt.Errorf("scan quota item: %w", err)
		}
		quota.ItemIDs = append(quota.ItemIDs, id)
	}
	return quota, rows.Err()
}

func (r *VoucherRepository) SumBlockedUsages(ctx context.Context, quotaID string, now time.Time) (int, error) {
	const q = `
SELECT COALESCE(SUM(max_usages - redeemed), 0)
FROM vouchers
WHERE quota_id = $1 AND block_quota AND redeemed < max_usages
  AND (valid_until IS NULL OR valid_until > $2)`
	var total int
	if err := queryRow(ctx, r.pool, q, quotaID, now).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum blocked usages: %w", err)
	}
	return total, nil
}

func (r *VoucherRepository) CountPositionsForItems(ctx context.Context, eventID string, itemIDs []string) (int, error) {
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

const voucherColumns = `id, event_id, code, max_usages, redeemed, price_mode, value, item_id, quota_id, block_quota, valid_until, comment, created_at`

func scanVoucher(row pgx.Row) (domain.Voucher, error) {
	var v domain.Voucher
	var mode string
	err := row.Scan(&v.ID, &v.EventID, &v.Code, &v.MaxUsages, &v.Redeemed, &mode, &v.Value,
		&v.ItemID, &v.QuotaID, &v.BlockQuota, &v.ValidUntil, &v.Comment, &v.CreatedAt)
	v.PriceMode = domain.PriceMode(mode)
	return v, err
}

func (r *VoucherRepository) Create(ctx context.Context, v domain.Voucher) error {
	const stmt = `
INSERT INTO vouchers (id, event_id, code, max_usages, redeemed, price_mode, value, item_id, quota_id, block_quota, valid_until, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := exec(ctx, r.pool, stmt, v.ID, v.EventID, v.Code, v.MaxUsages, v.Redeemed,
		string(v.PriceMode), v.Value, v.ItemID, v.QuotaID, v.BlockQuota, v.ValidUntil, v.Comment, v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCodeTaken
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

func (r *VoucherRepository) Get(ctx context.Context, eventID, id string) (domain.Voucher, error) {
	q := `SELECT ` + voucherColumns + ` FROM vouchers WHERE event_id = $1 AND id = $2`
	v, err := scanVoucher(queryRow(ctx, r.pool, q, eventID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Voucher{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Voucher{}, domain.ErrVoucherNotFound
		}
		return domain.Voucher{}, fmt.Errorf("get voucher: %w", err)
	}
	return v, nil
}

func (r *VoucherRepository) List(ctx context.Context, eventID string, limit, offset int) ([]domain.Voucher, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM vouchers WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vouchers: %w", err)
	}

	q := `SELECT ` + voucherColumns + ` FROM vouchers WHERE event_id = $1 ORDER BY code LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Voucher, 0)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan voucher: %w", err)
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *VoucherRepository) Update(ctx context.Context, v domain.Voucher) error {
	const stmt = `
UPDATE vouchers
SET max_usages = $2, price_mode = $3, value = $4, item_id = $5, quota_id = $6,
    block_quota = $7, valid_until = $8, comment = $9
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, v.ID, v.MaxUsages, string(v.PriceMode), v.Value,
		v.ItemID, v.QuotaID, v.BlockQuota, v.ValidUntil, v.Comment)
	if err != nil {
		return fmt.Errorf("update voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoucherNotFound
	}
	return nil
}

func (r *VoucherRepository) Delete(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM vouchers WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoucherNotFound
	}
	return nil
}
