package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type GiftCardRepository struct {
	pool *pgxpool.Pool
}

func NewGiftCardRepository(pool *pgxpool.Pool) *GiftCardRepository {
	return &GiftCardRepository{pool: pool}
}

func (r *GiftCardRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *GiftCardRepository) Create(ctx context.Context, c domain.GiftCard) error {
	const stmt = `
INSERT INTO gift_cards (id, organizer_id, secret, currency, testmode, expires, conditions, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := exec(ctx, r.pool, stmt, c.ID, c.OrganizerID, c.Secret, c.Currency, c.Testmode, c.Expires, c.Conditions, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSecretTaken
		}
		return fmt.Errorf("create gift card: %w", err)
	}
	return nil
}

const giftCardColumns = `id, organizer_id, secret, currency, testmode, expires, conditions, created_at`

func scanGiftCard(row pgx.Row) (domain.GiftCard, error) {
	var c domain.GiftCard
	err := row.Scan(&c.ID, &c.OrganizerID, &c.Secret, &c.Currency, &c.Testmode, &c.Expires, &c.Conditions, &c.CreatedAt)
	return c, err
}

func (r *GiftCardRepository) get(ctx context.Context, organizerID, id, suffix string) (domain.GiftCard, error) {
	q := `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE organizer_id = $1 AND id = $2` + suffix
	c, err := scanGiftCard(queryRow(ctx, r.pool, q, organizerID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.GiftCard{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.GiftCard{}, domain.ErrGiftCardNotFound
		}
		return domain.GiftCard{}, fmt.Errorf("get gift card: %w", err)
	}
	return c, nil
}

func (r *GiftCardRepository) Get(ctx context.Context, organizerID, id string) (domain.GiftCard, error) {
	c, err := r.get(ctx, organizerID, id, ``)
	if err != nil {
		return domain.GiftCard{}, err
	}
	c.Value, err = r.SumTransactions(ctx, c.ID)
	if err != nil {
		return domain.GiftCard{}, err
	}
	return c, nil
}

// GetForUpdate locks the gift card row until the surrounding transaction
// commits, serializing concurrent transactions on the same card.
func (r *GiftCardRepository) GetForUpdate(ctx context.Context, organizerID, id string) (domain.GiftCard, error) {
	return r.get(ctx, organizerID, id, ` FOR UPDATE`)
}

func (r *GiftCardRepository) List(ctx context.Context, organizerID string, limit, offset int) ([]domain.GiftCard, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM gift_cards WHERE organizer_id = $1`, organizerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count gift cards: %w", err)
	}

	q := `
SELECT c.id, c.organizer_id, c.secret, c.currency, c.testmode, c.expires, c.conditions, c.created_at,
       COALESCE((SELECT SUM(value) FROM gift_card_transactions t WHERE t.gift_card_id = c.id), 0)
FROM gift_cards c
WHERE c.organizer_id = $1
ORDER BY c.created_at, c.id
LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, organizerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list gift cards: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GiftCard, 0)
	for rows.Next() {
		var c domain.GiftCard
		if err := rows.Scan(&c.ID, &c.OrganizerID, &c.Secret, &c.Currency, &c.Testmode,
			&c.Expires, &c.Conditions, &c.CreatedAt, &c.Value); err != nil {
			return nil, 0, fmt.Errorf("scan gift card: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *GiftCardRepository) Update(ctx context.Context, c domain.GiftCard) error {
	const stmt = `UPDATE gift_cards SET expires = $2, conditions = $3 WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, c.ID, c.Expires, c.Conditions)
	if err != nil {
		return fmt.Errorf("update gift card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGiftCardNotFound
	}
	return nil
}

func (r *GiftCardRepository) Delete(ctx context.Context, organizerID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM gift_cards WHERE organizer_id = $1 AND id = $2`, organizerID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete gift card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGiftCardNotFound
	}
	return nil
}

func (r *GiftCardRepository) CreateTransaction(ctx context.Context, t domain.GiftCardTransaction) error {
	const stmt = `
INSERT INTO gift_card_transactions (id, gift_card_id, value, text, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := exec(ctx, r.pool, stmt, t.ID, t.GiftCardID, t.Value, t.Text, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create gift card transaction: %w", err)
	}
	return nil
}

func (r *GiftCardRepository) ListTransactions(ctx context.Context, cardID string, limit, offset int) ([]domain.GiftCardTransaction, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM gift_card_transactions WHERE gift_card_id = $1`, cardID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	const q = `
SELECT id, gift_card_id, value, text, created_at
FROM gift_card_transactions
WHERE gift_card_id = $1
ORDER BY created_at, id
LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, cardID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.GiftCardTransaction, 0)
	for rows.Next() {
		var t domain.GiftCardTransaction
		if err := rows.Scan(&t.ID, &t.GiftCardID, &t.Value, &t.Text, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *GiftCardRepository) SumTransactions(ctx context.Context, cardID string) (domain.Money, error) {
	const q = `SELECT COALESCE(SUM(value), 0) FROM gift_card_transactions WHERE gift_card_id = $1`
	var sum int64
	if err := queryRow(ctx, r.pool, q, cardID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return domain.Money(sum), nil
}

func (r *GiftCardRepository) HasTransactions(ctx context.Context, cardID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM gift_card_transactions WHERE gift_card_id = $1)`
	var has bool
	if err := queryRow(ctx, r.pool, q, cardID).Scan(&has); err != nil {
		return false, fmt.Errorf("check transactions: %w", err)
	}
	return has, nil
}
