package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type fakeVoucherRepo struct {
	quotas   map[string]domain.Quota
	vouchers map[string]domain.Voucher
	// positions used per item id
	positions map[string]int
	lockErr   error
}

func newFakeVoucherRepo() *fakeVoucherRepo {
	return &fakeVoucherRepo{
		quotas:    make(map[string]domain.Quota),
		vouchers:  make(map[string]domain.Voucher),
		positions: make(map[string]int),
	}
}

func (f *fakeVoucherRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeVoucherRepo) LockQuota(_ context.Context, eventID, quotaID string) (domain.Quota, error) {
	if f.lockErr != nil {
		return domain.Quota{}, f.lockErr
	}
	q, ok := f.quotas[quotaID]
	if !ok || q.EventID != eventID {
		return domain.Quota{}, domain.ErrQuotaNotFound
	}
	return q, nil
}

func (f *fakeVoucherRepo) SumBlockedUsages(_ context.Context, quotaID string, now time.Time) (int, error) {
	sum := 0
	for _, v := range f.vouchers {
		if v.QuotaID != nil && *v.QuotaID == quotaID && v.Blocks(now) {
			sum += v.MaxUsages - v.Redeemed
		}
	}
	return sum, nil
}

func (f *fakeVoucherRepo) CountPositionsForItems(_ context.Context, _ string, itemIDs []string) (int, error) {
	sum := 0
	for _, id := range itemIDs {
		sum += f.positions[id]
	}
	return sum, nil
}

func (f *fakeVoucherRepo) Create(_ context.Context, v domain.Voucher) error {
	for _, existing := range f.vouchers {
		if existing.EventID == v.EventID && existing.Code == v.Code {
			return domain.ErrCodeTaken
		}
	}
	f.vouchers[v.ID] = v
	return nil
}

func (f *fakeVoucherRepo) Get(_ context.Context, eventID, id string) (domain.Voucher, error) {
	v, ok := f.vouchers[id]
	if !ok || v.EventID != eventID {
		return domain.Voucher{}, domain.ErrVoucherNotFound
	}
	return v, nil
}

func (f *fakeVoucherRepo) List(_ context.Context, eventID string, limit, offset int) ([]domain.Voucher, int, error) {
	var out []domain.Voucher
	for _, v := range f.vouchers {
		if v.EventID == eventID {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (f *fakeVoucherRepo) Update(_ context.Context, v domain.Voucher) error {
	if _, ok := f.vouchers[v.ID]; !ok {
		return domain.ErrVoucherNotFound
	}
	f.vouchers[v.ID] = v
	return nil
}

func (f *fakeVoucherRepo) Delete(_ context.Context, eventID, id string) error {
	v, ok := f.vouchers[id]
	if !ok || v.EventID != eventID {
		return domain.ErrVoucherNotFound
	}
	delete(f.vouchers, id)
	return nil
}

func TestVoucherService_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	size := 10
	quotaID := "quota-1"

	newSvc := func() (*VoucherService, *fakeVoucherRepo) {
		repo := newFakeVoucherRepo()
		repo.quotas[quotaID] = domain.Quota{
			ID: quotaID, EventID: "ev-1", Size: &size, ItemIDs: []string{"item-1"},
		}
		return NewVoucherService(repo, clock.NewFixed(now)), repo
	}

	t.Run("uppercases code and defaults price mode", func(t *testing.T) {
		svc, _ := newSvc()
		v, err := svc.Create(context.Background(), "ev-1", VoucherInput{Code: "summer", MaxUsages: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Code != "SUMMER" {
			t.Fatalf("code = %q, want SUMMER", v.Code)
		}
		if v.PriceMode != domain.PriceModeNone {
			t.Fatalf("price mode = %q, want none", v.PriceMode)
		}
	})

	t.Run("rejects short codes", func(t *testing.T) {
		svc, _ := newSvc()
		_, err := svc.Create(context.Background(), "ev-1", VoucherInput{Code: "abc", MaxUsages: 1})
		if !errors.Is(err, domain.ErrInvalidSlug) {
			t.Fatalf("expected ErrInvalidSlug, got %v", err)
		}
	})

	t.Run("blocking voucher reserves quota", func(t *testing.T) {
		svc, _ := newSvc()
		_, err := svc.Create(context.Background(), "ev-1", VoucherInput{
			Code: "BLOCK1", MaxUsages: 8, QuotaID: &quotaID, BlockQuota: true,
		})
		if err != nil {
			t.Fatalf("first blocking voucher: %v", err)
		}
		_, err = svc.Create(context.Background(), "ev-1", VoucherInput{
			Code: "BLOCK2", MaxUsages: 5, QuotaID: &quotaID, BlockQuota: true,
		})
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}
	})

	t.Run("sold positions count against the quota", func(t *testing.T) {
		svc, repo := newSvc()
		repo.positions["item-1"] = 7
		_, err := svc.Create(context.Background(), "ev-1", VoucherInput{
			Code: "BLOCK3", MaxUsages: 4, QuotaID: &quotaID, BlockQuota: true,
		})
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}
	})

	t.Run("lock conflict propagates", func(t *testing.T) {
		svc, repo := newSvc()
		repo.lockErr = domain.ErrLockNotAvailable
		_, err := svc.Create(context.Background(), "ev-1", VoucherInput{
			Code: "BLOCK4", MaxUsages: 1, QuotaID: &quotaID, BlockQuota: true,
		})
		if !errors.Is(err, domain.ErrLockNotAvailable) {
			t.Fatalf("expected ErrLockNotAvailable, got %v", err)
		}
	})

	t.Run("unlimited quota never rejects", func(t *testing.T) {
		svc, repo := newSvc()
		repo.quotas["quota-inf"] = domain.Quota{ID: "quota-inf", EventID: "ev-1"}
		inf := "quota-inf"
		_, err := svc.Create(context.Background(), "ev-1", VoucherInput{
			Code: "BLOCK5", MaxUsages: 100000, QuotaID: &inf, BlockQuota: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestVoucherService_BatchCreate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	size := 10
	quotaID := "quota-1"

	repo := newFakeVoucherRepo()
	repo.quotas[quotaID] = domain.Quota{ID: quotaID, EventID: "ev-1", Size: &size}
	svc := NewVoucherService(repo, clock.NewFixed(now))

	// 6 + 6 exceeds the quota of 10 within a single batch; nothing may be
	// stored.
	_, err := svc.BatchCreate(context.Background(), "ev-1", []VoucherInput{
		{Code: "BATCH1", MaxUsages: 6, QuotaID: &quotaID, BlockQuota: true},
		{Code: "BATCH2", MaxUsages: 6, QuotaID: &quotaID, BlockQuota: true},
	})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	vouchers, err := svc.BatchCreate(context.Background(), "ev-1", []VoucherInput{
		{Code: "BATCH3", MaxUsages: 5, QuotaID: &quotaID, BlockQuota: true},
		{Code: "BATCH4", MaxUsages: 5, QuotaID: &quotaID, BlockQuota: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vouchers) != 2 {
		t.Fatalf("expected 2 vouchers, got %d", len(vouchers))
	}
}

func TestVoucherService_Update(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("cannot shrink below redeemed", func(t *testing.T) {
		repo := newFakeVoucherRepo()
		repo.vouchers["v1"] = domain.Voucher{ID: "v1", EventID: "ev-1", Code: "CODE1", MaxUsages: 5, Redeemed: 3}
		svc := NewVoucherService(repo, clock.NewFixed(now))

		two := 2
		_, err := svc.Update(context.Background(), "ev-1", "v1", UpdateVoucherInput{MaxUsages: &two})
		if !errors.Is(err, domain.ErrVoucherRedeemed) {
			t.Fatalf("expected ErrVoucherRedeemed, got %v", err)
		}
	})

	t.Run("growing a blocking voucher rechecks quota", func(t *testing.T) {
		size := 10
		quotaID := "quota-1"
		repo := newFakeVoucherRepo()
		repo.quotas[quotaID] = domain.Quota{ID: quotaID, EventID: "ev-1", Size: &size}
		repo.vouchers["v1"] = domain.Voucher{
			ID: "v1", EventID: "ev-1", Code: "CODE1",
			MaxUsages: 8, QuotaID: &quotaID, BlockQuota: true,
		}
		svc := NewVoucherService(repo, clock.NewFixed(now))

		eleven := 11
		_, err := svc.Update(context.Background(), "ev-1", "v1", UpdateVoucherInput{MaxUsages: &eleven})
		if !errors.Is(err, domain.ErrQuotaExceeded) {
			t.Fatalf("expected ErrQuotaExceeded, got %v", err)
		}

		ten := 10
		v, err := svc.Update(context.Background(), "ev-1", "v1", UpdateVoucherInput{MaxUsages: &ten})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.MaxUsages != 10 {
			t.Fatalf("max usages = %d, want 10", v.MaxUsages)
		}
	})
}

func TestVoucherService_Delete(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeVoucherRepo()
	repo.vouchers["v1"] = domain.Voucher{ID: "v1", EventID: "ev-1", Code: "CODE1", MaxUsages: 5, Redeemed: 1}
	repo.vouchers["v2"] = domain.Voucher{ID: "v2", EventID: "ev-1", Code: "CODE2", MaxUsages: 5}
	svc := NewVoucherService(repo, clock.NewFixed(now))

	if err := svc.Delete(context.Background(), "ev-1", "v1"); !errors.Is(err, domain.ErrVoucherRedeemed) {
		t.Fatalf("expected ErrVoucherRedeemed, got %v", err)
	}
	if err := svc.Delete(context.Background(), "ev-1", "v2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.vouchers["v2"]; ok {
		t.Fatalf("voucher v2 still stored after delete")
	}
}
