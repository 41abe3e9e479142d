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

func TestCheckinRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewCheckinRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	insertPosition := func(t *testing.T, ctx context.Context, eventID, itemID, secret string) domain.Position {
		t.Helper()
		p := domain.Position{
			ID:        uuid.NewString(),
			EventID:   eventID,
			Secret:    secret,
			ItemID:    itemID,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := repo.CreatePosition(ctx, p); err != nil {
			t.Fatalf("create position: %v", err)
		}
		return p
	}

	t.Run("position secrets are unique per event", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")
		itemID := testutil.InsertItem(t, ctx, pool, eventID, 2500)

		insertPosition(t, ctx, eventID, itemID, "abc123")

		err := repo.CreatePosition(ctx, domain.Position{
			ID: uuid.NewString(), EventID: eventID, Secret: "abc123", ItemID: itemID,
			CreatedAt: time.Now().UTC(),
		})
		if !errors.Is(err, domain.ErrSecretTaken) {
			t.Fatalf("expected ErrSecretTaken, got %v", err)
		}

		got, err := repo.GetPositionBySecret(ctx, eventID, "abc123")
		if err != nil {
			t.Fatalf("get by secret: %v", err)
		}
		if got.Secret != "abc123" || got.ItemID != itemID {
			t.Fatalf("unexpected position: %+v", got)
		}

		_, err = repo.GetPositionBySecret(ctx, eventID, "missing")
		if !errors.Is(err, domain.ErrPositionNotFound) {
			t.Fatalf("expected ErrPositionNotFound, got %v", err)
		}
	})

	t.Run("duplicate nonce maps to ErrAlreadyRedeemed", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")
		itemID := testutil.InsertItem(t, ctx, pool, eventID, 2500)
		pos := insertPosition(t, ctx, eventID, itemID, "abc123")

		list := domain.CheckinList{
			ID: uuid.NewString(), EventID: eventID,
			Name: "Main entrance", AllProducts: true,
		}
		if err := repo.CreateList(ctx, list); err != nil {
			t.Fatalf("create list: %v", err)
		}

		now := time.Now().UTC().Truncate(time.Microsecond)
		checkin := domain.Checkin{
			ID: uuid.NewString(), ListID: list.ID, PositionID: pos.ID,
			Type: domain.CheckinTypeEntry, Nonce: "n-1", Datetime: now,
		}
		if err := repo.CreateCheckin(ctx, checkin); err != nil {
			t.Fatalf("create check-in: %v", err)
		}

		err := repo.CreateCheckin(ctx, domain.Checkin{
			ID: uuid.NewString(), ListID: list.ID, PositionID: pos.ID,
			Type: domain.CheckinTypeEntry, Nonce: "n-1", Datetime: now,
		})
		if !errors.Is(err, domain.ErrAlreadyRedeemed) {
			t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
		}

		found, err := repo.FindCheckinByNonce(ctx, list.ID, pos.ID, "n-1")
		if err != nil {
			t.Fatalf("find by nonce: %v", err)
		}
		if found == nil || found.ID != checkin.ID {
			t.Fatalf("expected stored check-in, got %+v", found)
		}

		found, err = repo.FindCheckinByNonce(ctx, list.ID, pos.ID, "n-2")
		if err != nil {
			t.Fatalf("find by nonce: %v", err)
		}
		if found != nil {
			t.Fatalf("expected nil for unknown nonce, got %+v", found)
		}
	})

	t.Run("voucher redemption stops at max usages", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")
		itemID := testutil.InsertItem(t, ctx, pool, eventID, 2500)

		vouchers := NewVoucherRepository(pool)
		v := domain.Voucher{
			ID: uuid.NewString(), EventID: eventID, Code: "HALF", MaxUsages: 2,
			PriceMode: domain.PriceModePercent, Value: 5000,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := vouchers.Create(ctx, v); err != nil {
			t.Fatalf("create voucher: %v", err)
		}

		got, err := repo.GetVoucherByCode(ctx, eventID, "HALF")
		if err != nil {
			t.Fatalf("get voucher by code: %v", err)
		}
		if got.ID != v.ID || got.MaxUsages != 2 {
			t.Fatalf("unexpected voucher: %+v", got)
		}
		if _, err := repo.GetVoucherByCode(ctx, eventID, "NOPE"); !errors.Is(err, domain.ErrVoucherNotFound) {
			t.Fatalf("expected ErrVoucherNotFound, got %v", err)
		}

		if err := repo.RedeemVoucher(ctx, v.ID); err != nil {
			t.Fatalf("first redemption: %v", err)
		}
		if err := repo.RedeemVoucher(ctx, v.ID); err != nil {
			t.Fatalf("second redemption: %v", err)
		}
		if err := repo.RedeemVoucher(ctx, v.ID); !errors.Is(err, domain.ErrVoucherNotUsable) {
			t.Fatalf("expected ErrVoucherNotUsable, got %v", err)
		}
		got, err = repo.GetVoucherByCode(ctx, eventID, "HALF")
		if err != nil {
			t.Fatalf("re-read voucher: %v", err)
		}
		if got.Redeemed != 2 {
			t.Fatalf("redeemed = %d, want 2", got.Redeemed)
		}

		p := domain.Position{
			ID: uuid.NewString(), EventID: eventID, Secret: "s-v", ItemID: itemID,
			Price: 1250, VoucherID: &v.ID,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := repo.CreatePosition(ctx, p); err != nil {
			t.Fatalf("create position: %v", err)
		}
		stored, err := repo.GetPosition(ctx, eventID, p.ID)
		if err != nil {
			t.Fatalf("get position: %v", err)
		}
		if stored.VoucherID == nil || *stored.VoucherID != v.ID {
			t.Fatalf("voucher id = %v, want %s", stored.VoucherID, v.ID)
		}
	})

	t.Run("status aggregates per product", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		orgID := testutil.InsertOrganizer(t, ctx, pool, "demo", "Demo")
		eventID := testutil.InsertEvent(t, ctx, pool, orgID, "congress")
		ticketID := testutil.InsertItem(t, ctx, pool, eventID, 2500)
		vipID := testutil.InsertItem(t, ctx, pool, eventID, 9900)

		list := domain.CheckinList{
			ID: uuid.NewString(), EventID: eventID,
			Name: "Main entrance", AllProducts: true,
		}
		if err := repo.CreateList(ctx, list); err != nil {
			t.Fatalf("create list: %v", err)
		}

		p1 := insertPosition(t, ctx, eventID, ticketID, "s1")
		insertPosition(t, ctx, eventID, ticketID, "s2")
		insertPosition(t, ctx, eventID, vipID, "s3")

		now := time.Now().UTC().Truncate(time.Microsecond)
		if err := repo.CreateCheckin(ctx, domain.Checkin{
			ID: uuid.NewString(), ListID: list.ID, PositionID: p1.ID,
			Type: domain.CheckinTypeEntry, Nonce: "n-1", Datetime: now,
		}); err != nil {
			t.Fatalf("create check-in: %v", err)
		}

		status, err := repo.Status(ctx, list)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if status.PositionCount != 3 {
			t.Fatalf("expected 3 positions, got %d", status.PositionCount)
		}
		if status.CheckinCount != 1 {
			t.Fatalf("expected 1 check-in, got %d", status.CheckinCount)
		}
		if len(status.Items) != 2 {
			t.Fatalf("expected 2 item rows, got %d", len(status.Items))
		}
	})
}
