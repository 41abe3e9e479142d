package app

import (
	"context"
	"strings"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type VoucherRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockQuota acquires the quota row with FOR UPDATE NOWAIT. A concurrent
	// holder surfaces as domain.ErrLockNotAvailable.
	LockQuota(ctx context.Context, eventID, quotaID string) (domain.Quota, error)
	SumBlockedUsages(ctx context.Context, quotaID string, now time.Time) (int, error)
	CountPositionsForItems(ctx context.Context, eventID string, itemIDs []string) (int, error)

	Create(ctx context.Context, v domain.Voucher) error
	Get(ctx context.Context, eventID, id string) (domain.Voucher, error)
	List(ctx context.Context, eventID string, limit, offset int) ([]domain.Voucher, int, error)
	Update(ctx context.Context, v domain.Voucher) error
	Delete(ctx context.Context, eventID, id string) error
}

type VoucherService struct {
	repo  VoucherRepository
	clock clock.Clock
}

func NewVoucherService(repo VoucherRepository, clk clock.Clock) *VoucherService {
	return &VoucherService{repo: repo, clock: clk}
}

type VoucherInput struct {
	Code       string
	MaxUsages  int
	PriceMode  domain.PriceMode
	Value      domain.Money
	ItemID     *string
	QuotaID    *string
	BlockQuota bool
	ValidUntil *time.Time
	Comment    string
}

func (in VoucherInput) validate() error {
	if in.Code == "" || len(in.Code) < 5 {
		return domain.ErrInvalidSlug
	}
	if in.MaxUsages < 1 {
		return domain.ErrInvalidID
	}
	if in.PriceMode != "" && !in.PriceMode.Valid() {
		return domain.ErrInvalidID
	}
	return nil
}

func (s *VoucherService) build(in VoucherInput) domain.Voucher {
	mode := in.PriceMode
	if mode == "" {
		mode = domain.PriceModeNone
	}
	return domain.Voucher{
		ID:         newID(),
		Code:       strings.ToUpper(in.Code),
		MaxUsages:  in.MaxUsages,
		PriceMode:  mode,
		Value:      in.Value,
		ItemID:     in.ItemID,
		QuotaID:    in.QuotaID,
		BlockQuota: in.BlockQuota,
		ValidUntil: in.ValidUntil,
		Comment:    in.Comment,
		CreatedAt:  s.clock.Now(),
	}
}

// Create stores one voucher. A quota-blocking voucher reserves capacity, so
// the quota row is locked and the reservation checked against its size; a
// lock held by a concurrent writer propagates as ErrLockNotAvailable, which
// transport reports as a retryable conflict.
func (s *VoucherService) Create(ctx context.Context, eventID string, in VoucherInput) (domain.Voucher, error) {
	if err := in.validate(); err != nil {
		return domain.Voucher{}, err
	}
	voucher := s.build(in)
	voucher.EventID = eventID

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.checkQuota(txCtx, eventID, voucher, 0); err != nil {
			return err
		}
		return s.repo.Create(txCtx, voucher)
	})
	if err != nil {
		return domain.Voucher{}, err
	}
	return voucher, nil
}

// BatchCreate stores all vouchers or none. Reservations against the same
// quota accumulate across the batch.
func (s *VoucherService) BatchCreate(ctx context.Context, eventID string, ins []VoucherInput) ([]domain.Voucher, error) {
	for _, in := range ins {
		if err := in.validate(); err != nil {
			return nil, err
		}
	}
	vouchers := make([]domain.Voucher, 0, len(ins))
	for _, in := range ins {
		v := s.build(in)
		v.EventID = eventID
		vouchers = append(vouchers, v)
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		for _, v := range vouchers {
			// Earlier inserts of this batch are visible inside the
			// transaction, so SumBlockedUsages already accounts for them.
			if err := s.checkQuota(txCtx, eventID, v, 0); err != nil {
				return err
			}
			if err := s.repo.Create(txCtx, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vouchers, nil
}

// checkQuota verifies that a blocking voucher still fits its quota. extra is
// capacity already claimed earlier in the same batch.
func (s *VoucherService) checkQuota(ctx context.Context, eventID string, v domain.Voucher, extra int) error {
	if !v.BlockQuota || v.QuotaID == nil {
		return nil
	}
	quota, err := s.repo.LockQuota(ctx, eventID, *v.QuotaID)
	if err != nil {
		return err
	}
	if quota.Size == nil {
		return nil
	}
	blocked, err := s.repo.SumBlockedUsages(ctx, quota.ID, s.clock.Now())
	if err != nil {
		return err
	}
	used, err := s.repo.CountPositionsForItems(ctx, eventID, quota.ItemIDs)
	if err != nil {
		return err
	}
	if blocked+used+extra+(v.MaxUsages-v.Redeemed) > *quota.Size {
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (s *VoucherService) Get(ctx context.Context, eventID, id string) (domain.Voucher, error) {
	return s.repo.Get(ctx, eventID, id)
}

func (s *VoucherService) List(ctx context.Context, eventID string, page Page) ([]domain.Voucher, int, error) {
	return s.repo.List(ctx, eventID, page.Limit(), page.Offset())
}

type UpdateVoucherInput struct {
	MaxUsages  *int
	PriceMode  *domain.PriceMode
	Value      *domain.Money
	ItemID     **string
	QuotaID    **string
	BlockQuota *bool
	ValidUntil **time.Time
	Comment    *string
}

func (s *VoucherService) Update(ctx context.Context, eventID, id string, in UpdateVoucherInput) (domain.Voucher, error) {
	var result domain.Voucher
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		voucher, err := s.repo.Get(txCtx, eventID, id)
		if err != nil {
			return err
		}
		before := voucher.MaxUsages
		wasBlocking := voucher.Blocks(s.clock.Now())

		if in.MaxUsages != nil {
			if *in.MaxUsages < voucher.Redeemed || *in.MaxUsages < 1 {
				return domain.ErrVoucherRedeemed
			}
			voucher.MaxUsages = *in.MaxUsages
		}
		if in.PriceMode != nil {
			if !in.PriceMode.Valid() {
				return domain.ErrInvalidID
			}
			voucher.PriceMode = *in.PriceMode
		}
		if in.Value != nil {
			voucher.Value = *in.Value
		}
		if in.ItemID != nil {
			voucher.ItemID = *in.ItemID
		}
		if in.QuotaID != nil {
			voucher.QuotaID = *in.QuotaID
		}
		if in.BlockQuota != nil {
			voucher.BlockQuota = *in.BlockQuota
		}
		if in.ValidUntil != nil {
			voucher.ValidUntil = *in.ValidUntil
		}
		if in.Comment != nil {
			voucher.Comment = *in.Comment
		}

		// Re-check capacity when the update grows the reservation. The
		// voucher's previous reservation is part of the stored sum, so it is
		// subtracted before re-adding the new one.
		if voucher.Blocks(s.clock.Now()) && (!wasBlocking || voucher.MaxUsages > before) {
			extra := 0
			if wasBlocking {
				extra = -(before - voucher.Redeemed)
			}
			if err := s.checkQuota(txCtx, eventID, voucher, extra); err != nil {
				return err
			}
		}
		if err := s.repo.Update(txCtx, voucher); err != nil {
			return err
		}
		result = voucher
		return nil
	})
	if err != nil {
		return domain.Voucher{}, err
	}
	return result, nil
}

// Delete refuses to remove vouchers that have been redeemed.
func (s *VoucherService) Delete(ctx context.Context, eventID, id string) error {
	voucher, err := s.repo.Get(ctx, eventID, id)
	if err != nil {
		return err
	}
	if voucher.Redeemed > 0 {
		return domain.ErrVoucherRedeemed
	}
	return s.repo.Delete(ctx, eventID, id)
}
