package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type CheckinRepository struct {
	pool *pgxpool.Pool
}

func NewCheckinRepository(pool *pgxpool.Pool) *CheckinRepository {
	return &CheckinRepository{pool: pool}
}

func (r *CheckinRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const positionColumns = `id, event_id, secret, item_id, subevent_id, variation, attendee_name, price, voucher_id, created_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan(&p.ID, &p.EventID, &p.Secret, &p.ItemID, &p.SubEventID,
		&p.Variation, &p.AttendeeName, &p.Price, &p.VoucherID, &p.CreatedAt)
	return p, err
}

func (r *CheckinRepository) CreatePosition(ctx context.Context, p domain.Position) error {
	const stmt = `
INSERT INTO positions (id, event_id, secret, item_id, subevent_id, variation, attendee_name, price, voucher_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := exec(ctx, r.pool, stmt, p.ID, p.EventID, p.Secret, p.ItemID, p.SubEventID,
		p.Variation, p.AttendeeName, p.Price, p.VoucherID, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSecretTaken
		}
		return fmt.Errorf("create position: %w", err)
	}
	return nil
}

func (r *CheckinRepository) GetPositionBySecret(ctx context.Context, eventID, secret string) (domain.Position, error) {
	q := `SELECT ` + positionColumns + ` FROM positions WHERE event_id = $1 AND secret = $2`
	p, err := scanPosition(queryRow(ctx, r.pool, q, eventID, secret))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrPositionNotFound
		}
		return domain.Position{}, fmt.Errorf("get position by secret: %w", err)
	}
	return p, nil
}

func (r *CheckinRepository) GetPosition(ctx context.Context, eventID, id string) (domain.Position, error) {
	q := `SELECT ` + positionColumns + ` FROM positions WHERE event_id = $1 AND id = $2`
	p, err := scanPosition(queryRow(ctx, r.pool, q, eventID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Position{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrPositionNotFound
		}
		return domain.Position{}, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

func (r *CheckinRepository) ListPositions(ctx context.Context, eventID, secret string, limit, offset int) ([]domain.Position, int, error) {
	// The secret filter serves scanners resolving a barcode to a position.
	where := `WHERE event_id = $1`
	args := []any{eventID}
	if secret != "" {
		where += ` AND secret = $2`
		args = append(args, secret)
	}

	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM positions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count positions: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM positions %s ORDER BY created_at, id LIMIT %d OFFSET %d`,
		positionColumns, where, limit, offset)
	rows, err := query(ctx, r.pool, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *CheckinRepository) DeletePosition(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM positions WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}

func (r *CheckinRepository) GetVoucherByCode(ctx context.Context, eventID, code string) (domain.Voucher, error) {
	q := `SELECT ` + voucherColumns + ` FROM vouchers WHERE event_id = $1 AND code = $2`
	v, err := scanVoucher(queryRow(ctx, r.pool, q, eventID, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Voucher{}, domain.ErrVoucherNotFound
		}
		return domain.Voucher{}, fmt.Errorf("get voucher by code: %w", err)
	}
	return v, nil
}

// RedeemVoucher takes one usage. The predicate keeps the counter below
// max_usages even under concurrent imports of the same code.
func (r *CheckinRepository) RedeemVoucher(ctx context.Context, id string) error {
	const stmt = `UPDATE vouchers SET redeemed = redeemed + 1 WHERE id = $1 AND redeemed < max_usages`
	tag, err := exec(ctx, r.pool, stmt, id)
	if err != nil {
		return fmt.Errorf("redeem voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVoucherNotUsable
	}
	return nil
}

const checkinListColumns = `id, event_id, name, all_products, limit_product_ids, subevent_id, include_pending`

func scanCheckinList(row pgx.Row) (domain.CheckinList, error) {
	var l domain.CheckinList
	err := row.Scan(&l.ID, &l.EventID, &l.Name, &l.AllProducts, &l.LimitProductIDs, &l.SubEventID, &l.IncludePending)
	return l, err
}

func (r *CheckinRepository) CreateList(ctx context.Context, l domain.CheckinList) error {
	const stmt = `
INSERT INTO checkin_lists (id, event_id, name, all_products, limit_product_ids, subevent_id, include_pending)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := exec(ctx, r.pool, stmt, l.ID, l.EventID, l.Name, l.AllProducts, l.LimitProductIDs, l.SubEventID, l.IncludePending)
	if err != nil {
		return fmt.Errorf("create check-in list: %w", err)
	}
	return nil
}

func (r *CheckinRepository) GetList(ctx context.Context, eventID, id string) (domain.CheckinList, error) {
	q := `SELECT ` + checkinListColumns + ` FROM checkin_lists WHERE event_id = $1 AND id = $2`
	l, err := scanCheckinList(queryRow(ctx, r.pool, q, eventID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CheckinList{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CheckinList{}, domain.ErrListNotFound
		}
		return domain.CheckinList{}, fmt.Errorf("get check-in list: %w", err)
	}
	return l, nil
}

func (r *CheckinRepository) ListLists(ctx context.Context, eventID string, limit, offset int) ([]domain.CheckinList, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM checkin_lists WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count check-in lists: %w", err)
	}

	q := `SELECT ` + checkinListColumns + ` FROM checkin_lists WHERE event_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, eventID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list check-in lists: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckinList, 0)
	for rows.Next() {
		l, err := scanCheckinList(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan check-in list: %w", err)
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *CheckinRepository) UpdateList(ctx context.Context, l domain.CheckinList) error {
	const stmt = `
UPDATE checkin_lists
SET name = $2, all_products = $3, limit_product_ids = $4, subevent_id = $5, include_pending = $6
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, l.ID, l.Name, l.AllProducts, l.LimitProductIDs, l.SubEventID, l.IncludePending)
	if err != nil {
		return fmt.Errorf("update check-in list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListNotFound
	}
	return nil
}

func (r *CheckinRepository) DeleteList(ctx context.Context, eventID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM checkin_lists WHERE event_id = $1 AND id = $2`, eventID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete check-in list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListNotFound
	}
	return nil
}

const checkinColumns = `id, list_id, position_id, type, nonce, datetime, forced`

func scanCheckin(row pgx.Row) (domain.Checkin, error) {
	var c domain.Checkin
	err := row.Scan(&c.ID, &c.ListID, &c.PositionID, &c.Type, &c.Nonce, &c.Datetime, &c.Forced)
	return c, err
}

func (r *CheckinRepository) FindCheckinByNonce(ctx context.Context, listID, positionID, nonce string) (*domain.Checkin, error) {
	q := `SELECT ` + checkinColumns + ` FROM checkins WHERE list_id = $1 AND position_id = $2 AND nonce = $3`
	c, err := scanCheckin(queryRow(ctx, r.pool, q, listID, positionID, nonce))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find check-in by nonce: %w", err)
	}
	return &c, nil
}

// FindEntry returns the latest entry-type check-in for the position, if any.
func (r *CheckinRepository) FindEntry(ctx context.Context, listID, positionID string) (*domain.Checkin, error) {
	q := `SELECT ` + checkinColumns + ` FROM checkins
WHERE list_id = $1 AND position_id = $2 AND type = 'entry'
ORDER BY datetime DESC LIMIT 1`
	c, err := scanCheckin(queryRow(ctx, r.pool, q, listID, positionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find entry check-in: %w", err)
	}
	return &c, nil
}

func (r *CheckinRepository) CreateCheckin(ctx context.Context, c domain.Checkin) error {
	const stmt = `
INSERT INTO checkins (id, list_id, position_id, type, nonce, datetime, forced)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := exec(ctx, r.pool, stmt, c.ID, c.ListID, c.PositionID, c.Type, c.Nonce, c.Datetime, c.Forced)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyRedeemed
		}
		return fmt.Errorf("create check-in: %w", err)
	}
	return nil
}

func (r *CheckinRepository) ListCheckins(ctx context.Context, listID string, limit, offset int) ([]domain.Checkin, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM checkins WHERE list_id = $1`, listID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count check-ins: %w", err)
	}

	q := `SELECT ` + checkinColumns + ` FROM checkins WHERE list_id = $1 ORDER BY datetime, id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, listID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Checkin, 0)
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan check-in: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Status aggregates position and check-in counts for a list, overall and per
// product, applying the list's product and subevent filters.
func (r *CheckinRepository) Status(ctx context.Context, list domain.CheckinList) (domain.ListStatus, error) {
	where := `p.event_id = $1`
	args := []any{list.EventID}
	if !list.AllProducts {
		args = append(args, list.LimitProductIDs)
		where += fmt.Sprintf(` AND p.item_id = ANY($%d)`, len(args))
	}
	if list.SubEventID != nil {
		args = append(args, *list.SubEventID)
		where += fmt.Sprintf(` AND p.subevent_id = $%d`, len(args))
	}
	args = append(args, list.ID)
	listArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
SELECT p.item_id,
       COUNT(*),
       COUNT(DISTINCT c.position_id)
FROM positions p
LEFT JOIN checkins c ON c.position_id = p.id AND c.list_id = %s AND c.type = 'entry'
WHERE %s
GROUP BY p.item_id
ORDER BY p.item_id`, listArg, where)

	rows, err := query(ctx, r.pool, q, args...)
	if err != nil {
		return domain.ListStatus{}, fmt.Errorf("list status: %w", err)
	}
	defer rows.Close()

	var status domain.ListStatus
	for rows.Next() {
		var item domain.ListStatusItem
		if err := rows.Scan(&item.ItemID, &item.PositionCount, &item.CheckinCount); err != nil {
			return domain.ListStatus{}, fmt.Errorf("scan list status: %w", err)
		}
		status.Items = append(status.Items, item)
		status.PositionCount += item.PositionCount
		status.CheckinCount += item.CheckinCount
	}
	return status, rows.Err()
}
