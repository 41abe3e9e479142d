package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tessera-live/tessera/internal/domain"
	"github.com/tessera-live/tessera/internal/testutil"
)

func TestVoucherRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewVoucherRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	newVoucher := func(eventID, code string, quotaID *string, maxUsages, redeemed int, validUntil *time.Time) domain.Voucher {
		return domain.Voucher{
			ID:         uuid.NewString(),
			EventID:    eventID,
			Code:       code,
			MaxUsages:  maxUsages,
			Redeemed:   redeemed,
			PriceMode:  domain.PriceModeNone,
			QuotaID:    quotaID,
			BlockQuota: quotaID != nil,
			ValidUntil: validUntil,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("codes are unique per event", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")

		if err := repo.Create(ctx, newVoucher(eventID, "SUMMER", nil, 10, 0, nil)); err != nil {
			t.Fatalf("create voucher: %v", err)
		}
		err := repo.Create(ctx, newVoucher(eventID, "SUMMER", nil, 1, 0, nil))
		if !errors.Is(err, domain.ErrCodeTaken) {
			t.Fatalf("expected ErrCodeTaken, got %v", err)
		}
	})

	t.Run("SumBlockedUsages counts unredeemed blocking usages", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")
		itemID := testutil.InsertItem(t, ctx, pool, eventID, 2500)
		size := 100
		quotaID := testutil.InsertQuota(t, ctx, pool, eventID, &size, itemID)

		now := time.Now().UTC()
		expired := now.Add(-time.Hour)

		// 10-2 usages still blocked.
		if err := repo.Create(ctx, newVoucher(eventID, "BLOCK", &quotaID, 10, 2, nil)); err != nil {
			t.Fatalf("create voucher: %v", err)
		}
		// Fully redeemed, blocks nothing.
		if err := repo.Create(ctx, newVoucher(eventID, "SPENT", &quotaID, 5, 5, nil)); err != nil {
			t.Fatalf("create voucher: %v", err)
		}
		// Expired, blocks nothing.
		if err := repo.Create(ctx, newVoucher(eventID, "OLD", &quotaID, 7, 0, &expired)); err != nil {
			t.Fatalf("create voucher: %v", err)
		}
		// Does not block the quota at all.
		free := newVoucher(eventID, "FREE", &quotaID, 3, 0, nil)
		free.BlockQuota = false
		if err := repo.Create(ctx, free); err != nil {
			t.Fatalf("create voucher: %v", err)
		}

		total, err := repo.SumBlockedUsages(ctx, quotaID, now)
		if err != nil {
			t.Fatalf("sum blocked usages: %v", err)
		}
		if total != 8 {
			t.Fatalf("expected 8 blocked usages, got %d", total)
		}
	})

	t.Run("LockQuota conflicts surface as ErrLockNotAvailable", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")
		itemID := testutil.InsertItem(t, ctx, pool, eventID, 2500)
		size := 10
		quotaID := testutil.InsertQuota(t, ctx, pool, eventID, &size, itemID)

		// Hold the row lock on a separate connection, then try NOWAIT.
		blocker, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire conn: %v", err)
		}
		defer blocker.Release()
		tx, err := blocker.Begin(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()
		if _, err := tx.Exec(ctx, `SELECT id FROM quotas WHERE id = $1 FOR UPDATE`, quotaID); err != nil {
			t.Fatalf("take lock: %v", err)
		}

		lockErr := repo.WithTx(ctx, func(txCtx context.Context) error {
			_, err := repo.LockQuota(txCtx, eventID, quotaID)
			return err
		})
		if !errors.Is(lockErr, domain.ErrLockNotAvailable) {
			t.Fatalf("expected ErrLockNotAvailable, got %v", lockErr)
		}

		if err := tx.Rollback(ctx); err != nil {
			t.Fatalf("rollback: %v", err)
		}

		err = repo.WithTx(ctx, func(txCtx context.Context) error {
			quota, err := repo.LockQuota(txCtx, eventID, quotaID)
			if err != nil {
				return err
			}
			if quota.Size == nil || *quota.Size != 10 {
				t.Fatalf("unexpected quota: %+v", quota)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("lock after release: %v", err)
		}

		_, err = repo.LockQuota(ctx, eventID, "not-a-uuid")
		if !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}
