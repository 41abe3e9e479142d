package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

// ExportData reads the row sets rendered into export files.
type ExportData struct {
	pool *pgxpool.Pool
}

func NewExportData(pool *pgxpool.Pool) *ExportData {
	return &ExportData{pool: pool}
}

func (d *ExportData) VoucherRows(ctx context.Context, eventID string) ([][]string, error) {
	const q = `
SELECT code, max_usages, redeemed, price_mode, COALESCE(value, 0)
FROM vouchers
WHERE event_id = $1
ORDER BY code`
	rows, err := query(ctx, d.pool, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("voucher rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var code, mode string
		var maxUsages, redeemed int
		var value domain.Money
		if err := rows.Scan(&code, &maxUsages, &redeemed, &mode, &value); err != nil {
			return nil, fmt.Errorf("scan voucher row: %w", err)
		}
		out = append(out, []string{code, strconv.Itoa(maxUsages), strconv.Itoa(redeemed), mode, value.String()})
	}
	return out, rows.Err()
}

func (d *ExportData) CheckinRows(ctx context.Context, eventID string) ([][]string, error) {
	const q = `
SELECT p.secret, p.attendee_name, c.type, to_char(c.datetime AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
FROM checkins c
JOIN positions p ON p.id = c.position_id
WHERE p.event_id = $1
ORDER BY c.datetime, c.id`
	rows, err := query(ctx, d.pool, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("check-in rows: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var secret, name, typ, ts string
		if err := rows.Scan(&secret, &name, &typ, &ts); err != nil {
			return nil, fmt.Errorf("scan check-in row: %w", err)
		}
		out = append(out, []string{secret, name, typ, ts})
	}
	return out, rows.Err()
}
