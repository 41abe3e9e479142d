package app

import (
	"context"

	"github.com/tessera-live/tessera/internal/domain"
)

type DiscountRepository interface {
	Create(ctx context.Context, d domain.Discount) error
	Get(ctx context.Context, eventID, id string) (domain.Discount, error)
	List(ctx context.Context, eventID string, limit, offset int) ([]domain.Discount, int, error)
	Update(ctx context.Context, d domain.Discount) error
	Delete(ctx context.Context, eventID, id string) error
}

type DiscountService struct {
	repo DiscountRepository
}

func NewDiscountService(repo DiscountRepository) *DiscountService {
	return &DiscountService{repo: repo}
}

type DiscountInput struct {
	InternalName                   string
	Active                         bool
	Position                       int
	ConditionMinCount              int
	ConditionAllProducts           bool
	ConditionLimitProductIDs       []string
	BenefitDiscountMatchingPercent domain.Percent
	BenefitOnlyApplyToCheapestN    int
	SubEventMode                   domain.SubEventMode
}

func (in DiscountInput) validate() error {
	if in.InternalName == "" {
		return domain.ErrNameRequired
	}
	if in.ConditionMinCount < 1 {
		return domain.ErrInvalidID
	}
	if in.SubEventMode != "" && !in.SubEventMode.Valid() {
		return domain.ErrInvalidID
	}
	if in.BenefitDiscountMatchingPercent < 0 || in.BenefitDiscountMatchingPercent > 10000 {
		return domain.ErrInvalidID
	}
	return nil
}

func (s *DiscountService) Create(ctx context.Context, eventID string, in DiscountInput) (domain.Discount, error) {
	if err := in.validate(); err != nil {
		return domain.Discount{}, err
	}
	mode := in.SubEventMode
	if mode == "" {
		mode = domain.SubEventModeMixed
	}
	d := domain.Discount{
		ID:                             newID(),
		EventID:                        eventID,
		InternalName:                   in.InternalName,
		Active:                         in.Active,
		Position:                       in.Position,
		ConditionMinCount:              in.ConditionMinCount,
		ConditionAllProducts:           in.ConditionAllProducts,
		ConditionLimitProductIDs:       in.ConditionLimitProductIDs,
		BenefitDiscountMatchingPercent: in.BenefitDiscountMatchingPercent,
		BenefitOnlyApplyToCheapestN:    in.BenefitOnlyApplyToCheapestN,
		SubEventMode:                   mode,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return domain.Discount{}, err
	}
	return d, nil
}

func (s *DiscountService) Get(ctx context.Context, eventID, id string) (domain.Discount, error) {
	return s.repo.Get(ctx, eventID, id)
}

func (s *DiscountService) List(ctx context.Context, eventID string, page Page) ([]domain.Discount, int, error) {
	return s.repo.List(ctx, eventID, page.Limit(), page.Offset())
}

type UpdateDiscountInput struct {
	InternalName                   *string
	Active                         *bool
	Position                       *int
	ConditionMinCount              *int
	ConditionAllProducts           *bool
	ConditionLimitProductIDs       *[]string
	BenefitDiscountMatchingPercent *domain.Percent
	BenefitOnlyApplyToCheapestN    *int
	SubEventMode                   *domain.SubEventMode
}

func (s *DiscountService) Update(ctx context.Context, eventID, id string, in UpdateDiscountInput) (domain.Discount, error) {
	d, err := s.repo.Get(ctx, eventID, id)
	if err != nil {
		return domain.Discount{}, err
	}
	if in.InternalName != nil {
		d.InternalName = *in.InternalName
	}
	if in.Active != nil {
		d.Active = *in.Active
	}
	if in.Position != nil {
		d.Position = *in.Position
	}
	if in.ConditionMinCount != nil {
		d.ConditionMinCount = *in.ConditionMinCount
	}
	if in.ConditionAllProducts != nil {
		d.ConditionAllProducts = *in.ConditionAllProducts
	}
	if in.ConditionLimitProductIDs != nil {
		d.ConditionLimitProductIDs = *in.ConditionLimitProductIDs
	}
	if in.BenefitDiscountMatchingPercent != nil {
		d.BenefitDiscountMatchingPercent = *in.BenefitDiscountMatchingPercent
	}
	if in.BenefitOnlyApplyToCheapestN != nil {
		d.BenefitOnlyApplyToCheapestN = *in.BenefitOnlyApplyToCheapestN
	}
	if in.SubEventMode != nil {
		if !in.SubEventMode.Valid() {
			return domain.Discount{}, domain.ErrInvalidID
		}
		d.SubEventMode = *in.SubEventMode
	}
	check := DiscountInput{
		InternalName:                   d.InternalName,
		ConditionMinCount:              d.ConditionMinCount,
		BenefitDiscountMatchingPercent: d.BenefitDiscountMatchingPercent,
		SubEventMode:                   d.SubEventMode,
	}
	if err := check.validate(); err != nil {
		return domain.Discount{}, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return domain.Discount{}, err
	}
	return d, nil
}

func (s *DiscountService) Delete(ctx context.Context, eventID, id string) error {
	return s.repo.Delete(ctx, eventID, id)
}

// Preview applies one stored discount's rules to a hypothetical set of order
// lines and returns the resulting per-line prices, index-aligned with the
// input.
func (s *DiscountService) Preview(ctx context.Context, eventID, id string, lines []domain.DiscountLine) ([]domain.Money, error) {
	d, err := s.repo.Get(ctx, eventID, id)
	if err != nil {
		return nil, err
	}
	return d.Evaluate(lines), nil
}
