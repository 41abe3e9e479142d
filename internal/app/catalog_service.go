package app

import (
	"context"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type CatalogRepository interface {
	CreateItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, eventID, id string) (domain.Item, error)
	ListItems(ctx context.Context, eventID string, limit, offset int) ([]domain.Item, int, error)
	UpdateItem(ctx context.Context, item domain.Item) error
	DeleteItem(ctx context.Context, eventID, id string) error

	CreateQuota(ctx context.Context, quota domain.Quota) error
	GetQuota(ctx context.Context, eventID, id string) (domain.Quota, error)
	ListQuotas(ctx context.Context, eventID string, limit, offset int) ([]domain.Quota, int, error)
	UpdateQuota(ctx context.Context, quota domain.Quota) error
	DeleteQuota(ctx context.Context, eventID, id string) error
	CountBlockingVouchers(ctx context.Context, quotaID string, now time.Time) (int, error)
	CountPositionsForItems(ctx context.Context, eventID string, itemIDs []string) (int, error)

	CreateTaxRule(ctx context.Context, rule domain.TaxRule) error
	GetTaxRule(ctx context.Context, eventID, id string) (domain.TaxRule, error)
	ListTaxRules(ctx context.Context, eventID string, limit, offset int) ([]domain.TaxRule, int, error)
	UpdateTaxRule(ctx context.Context, rule domain.TaxRule) error
	DeleteTaxRule(ctx context.Context, eventID, id string) error
	TaxRuleInUse(ctx context.Context, id string) (bool, error)
}

type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{repo: repo, clock: clk}
}

type ItemInput struct {
	Name         domain.LocalizedString
	DefaultPrice domain.Money
	Active       bool
	Admission    bool
	Position     int
	TaxRuleID    *string
}

func (s *CatalogService) CreateItem(ctx context.Context, eventID string, in ItemInput) (domain.Item, error) {
	if in.Name.Any() == "" {
		return domain.Item{}, domain.ErrNameRequired
	}
	if in.TaxRuleID != nil {
		if _, err := s.repo.GetTaxRule(ctx, eventID, *in.TaxRuleID); err != nil {
			return domain.Item{}, err
		}
	}
	item := domain.Item{
		ID:           newID(),
		EventID:      eventID,
		Name:         in.Name,
		DefaultPrice: in.DefaultPrice,
		Active:       in.Active,
		Admission:    in.Admission,
		Position:     in.Position,
		TaxRuleID:    in.TaxRuleID,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func (s *CatalogService) GetItem(ctx context.Context, eventID, id string) (domain.Item, error) {
	return s.repo.GetItem(ctx, eventID, id)
}

func (s *CatalogService) ListItems(ctx context.Context, eventID string, page Page) ([]domain.Item, int, error) {
	return s.repo.ListItems(ctx, eventID, page.Limit(), page.Offset())
}

type UpdateItemInput struct {
	Name         *domain.LocalizedString
	DefaultPrice *domain.Money
	Active       *bool
	Admission    *bool
	Position     *int
	TaxRuleID    **string
}

func (s *CatalogService) UpdateItem(ctx context.Context, eventID, id string, in UpdateItemInput) (domain.Item, error) {
	item, err := s.repo.GetItem(ctx, eventID, id)
	if err != nil {
		return domain.Item{}, err
	}
	if in.Name != nil {
		if in.Name.Any() == "" {
			return domain.Item{}, domain.ErrNameRequired
		}
		item.Name = *in.Name
	}
	if in.DefaultPrice != nil {
		item.DefaultPrice = *in.DefaultPrice
	}
	if in.Active != nil {
		item.Active = *in.Active
	}
	if in.Admission != nil {
		item.Admission = *in.Admission
	}
	if in.Position != nil {
		item.Position = *in.Position
	}
	if in.TaxRuleID != nil {
		if *in.TaxRuleID != nil {
			if _, err := s.repo.GetTaxRule(ctx, eventID, **in.TaxRuleID); err != nil {
				return domain.Item{}, err
			}
		}
		item.TaxRuleID = *in.TaxRuleID
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

func (s *CatalogService) DeleteItem(ctx context.Context, eventID, id string) error {
	return s.repo.DeleteItem(ctx, eventID, id)
}

type QuotaInput struct {
	Name    string
	Size    *int
	ItemIDs []string
}

func (s *CatalogService) CreateQuota(ctx context.Context, eventID string, in QuotaInput) (domain.Quota, error) {
	if in.Name == "" {
		return domain.Quota{}, domain.ErrNameRequired
	}
	for _, itemID := range in.ItemIDs {
		if _, err := s.repo.GetItem(ctx, eventID, itemID); err != nil {
			return domain.Quota{}, err
		}
	}
	quota := domain.Quota{
		ID:      newID(),
		EventID: eventID,
		Name:    in.Name,
		Size:    in.Size,
		ItemIDs: in.ItemIDs,
	}
	if err := s.repo.CreateQuota(ctx, quota); err != nil {
		return domain.Quota{}, err
	}
	return quota, nil
}

func (s *CatalogService) GetQuota(ctx context.Context, eventID, id string) (domain.Quota, error) {
	return s.repo.GetQuota(ctx, eventID, id)
}

func (s *CatalogService) ListQuotas(ctx context.Context, eventID string, page Page) ([]domain.Quota, int, error) {
	return s.repo.ListQuotas(ctx, eventID, page.Limit(), page.Offset())
}

type UpdateQuotaInput struct {
	Name    *string
	Size    **int
	ItemIDs *[]string
}

func (s *CatalogService) UpdateQuota(ctx context.Context, eventID, id string, in UpdateQuotaInput) (domain.Quota, error) {
	quota, err := s.repo.GetQuota(ctx, eventID, id)
	if err != nil {
		return domain.Quota{}, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return domain.Quota{}, domain.ErrNameRequired
		}
		quota.Name = *in.Name
	}
	if in.Size != nil {
		quota.Size = *in.Size
	}
	if in.ItemIDs != nil {
		for _, itemID := range *in.ItemIDs {
			if _, err := s.repo.GetItem(ctx, eventID, itemID); err != nil {
				return domain.Quota{}, err
			}
		}
		quota.ItemIDs = *in.ItemIDs
	}
	if err := s.repo.UpdateQuota(ctx, quota); err != nil {
		return domain.Quota{}, err
	}
	return quota, nil
}

func (s *CatalogService) DeleteQuota(ctx context.Context, eventID, id string) error {
	return s.repo.DeleteQuota(ctx, eventID, id)
}

// Availability counts a quota's consumers: positions of linked products plus
// vouchers currently reserving capacity.
func (s *CatalogService) Availability(ctx context.Context, eventID, id string) (domain.QuotaAvailability, error) {
	quota, err := s.repo.GetQuota(ctx, eventID, id)
	if err != nil {
		return domain.QuotaAvailability{}, err
	}

	pending, err := s.repo.CountBlockingVouchers(ctx, quota.ID, s.clock.Now())
	if err != nil {
		return domain.QuotaAvailability{}, err
	}
	used, err := s.repo.CountPositionsForItems(ctx, eventID, quota.ItemIDs)
	if err != nil {
		return domain.QuotaAvailability{}, err
	}

	avail := domain.QuotaAvailability{
		TotalSize:       quota.Size,
		PendingVouchers: pending,
		UsedPositions:   used,
	}
	if quota.Size == nil {
		avail.Available = true
		return avail, nil
	}
	left := *quota.Size - pending - used
	if left < 0 {
		left = 0
	}
	avail.AvailableNumber = &left
	avail.Available = left > 0
	return avail, nil
}

type TaxRuleInput struct {
	Name             domain.LocalizedString
	Rate             domain.Percent
	PriceIncludesTax bool
}

func (s *CatalogService) CreateTaxRule(ctx context.Context, eventID string, in TaxRuleInput) (domain.TaxRule, error) {
	if in.Name.Any() == "" {
		return domain.TaxRule{}, domain.ErrNameRequired
	}
	rule := domain.TaxRule{
		ID:               newID(),
		EventID:          eventID,
		Name:             in.Name,
		Rate:             in.Rate,
		PriceIncludesTax: in.PriceIncludesTax,
	}
	if err := s.repo.CreateTaxRule(ctx, rule); err != nil {
		return domain.TaxRule{}, err
	}
	return rule, nil
}

func (s *CatalogService) GetTaxRule(ctx context.Context, eventID, id string) (domain.TaxRule, error) {
	return s.repo.GetTaxRule(ctx, eventID, id)
}

func (s *CatalogService) ListTaxRules(ctx context.Context, eventID string, page Page) ([]domain.TaxRule, int, error) {
	return s.repo.ListTaxRules(ctx, eventID, page.Limit(), page.Offset())
}

// ReplaceTaxRule implements PUT semantics: the new state is exactly the
// input, omitted fields having been reset to defaults by the caller.
func (s *CatalogService) ReplaceTaxRule(ctx context.Context, eventID, id string, in TaxRuleInput) (domain.TaxRule, error) {
	if in.Name.Any() == "" {
		return domain.TaxRule{}, domain.ErrNameRequired
	}
	rule, err := s.repo.GetTaxRule(ctx, eventID, id)
	if err != nil {
		return domain.TaxRule{}, err
	}
	rule.Name = in.Name
	rule.Rate = in.Rate
	rule.PriceIncludesTax = in.PriceIncludesTax
	if err := s.repo.UpdateTaxRule(ctx, rule); err != nil {
		return domain.TaxRule{}, err
	}
	return rule, nil
}

type UpdateTaxRuleInput struct {
	Name             *domain.LocalizedString
	Rate             *domain.Percent
	PriceIncludesTax *bool
}

func (s *CatalogService) UpdateTaxRule(ctx context.Context, eventID, id string, in UpdateTaxRuleInput) (domain.TaxRule, error) {
	rule, err := s.repo.GetTaxRule(ctx, eventID, id)
	if err != nil {
		return domain.TaxRule{}, err
	}
	if in.Name != nil {
		if in.Name.Any() == "" {
			return domain.TaxRule{}, domain.ErrNameRequired
		}
		rule.Name = *in.Name
	}
	if in.Rate != nil {
		rule.Rate = *in.Rate
	}
	if in.PriceIncludesTax != nil {
		rule.PriceIncludesTax = *in.PriceIncludesTax
	}
	if err := s.repo.UpdateTaxRule(ctx, rule); err != nil {
		return domain.TaxRule{}, err
	}
	return rule, nil
}

// DeleteTaxRule refuses to delete rules still referenced by products.
func (s *CatalogService) DeleteTaxRule(ctx context.Context, eventID, id string) error {
	if _, err := s.repo.GetTaxRule(ctx, eventID, id); err != nil {
		return err
	}
	inUse, err := s.repo.TaxRuleInUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return domain.ErrTaxRuleInUse
	}
	return s.repo.DeleteTaxRule(ctx, eventID, id)
}
