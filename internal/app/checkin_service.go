package app

import (
	"context"
	"strings"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type CheckinRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreatePosition(ctx context.Context, p domain.Position) error
	GetPositionBySecret(ctx context.Context, eventID, secret string) (domain.Position, error)
	GetPosition(ctx context.Context, eventID, id string) (domain.Position, error)
	ListPositions(ctx context.Context, eventID, secret string, limit, offset int) ([]domain.Position, int, error)
	DeletePosition(ctx context.Context, eventID, id string) error

	GetVoucherByCode(ctx context.Context, eventID, code string) (domain.Voucher, error)
	// RedeemVoucher increments the voucher's usage counter, failing with
	// ErrVoucherNotUsable once all usages are taken.
	RedeemVoucher(ctx context.Context, id string) error

	CreateList(ctx context.Context, l domain.CheckinList) error
	GetList(ctx context.Context, eventID, id string) (domain.CheckinList, error)
	ListLists(ctx context.Context, eventID string, limit, offset int) ([]domain.CheckinList, int, error)
	UpdateList(ctx context.Context, l domain.CheckinList) error
	DeleteList(ctx context.Context, eventID, id string) error

	FindCheckinByNonce(ctx context.Context, listID, positionID, nonce string) (*domain.Checkin, error)
	FindEntry(ctx context.Context, listID, positionID string) (*domain.Checkin, error)
	CreateCheckin(ctx context.Context, c domain.Checkin) error
	ListCheckins(ctx context.Context, listID string, limit, offset int) ([]domain.Checkin, int, error)
	Status(ctx context.Context, list domain.CheckinList) (domain.ListStatus, error)
}

type CheckinService struct {
	repo     CheckinRepository
	clock    clock.Clock
	notifier Notifier
}

func NewCheckinService(repo CheckinRepository, clk clock.Clock) *CheckinService {
	return &CheckinService{repo: repo, clock: clk}
}

func (s *CheckinService) SetNotifier(n Notifier) {
	s.notifier = n
}

type PositionInput struct {
	Secret       string
	ItemID       string
	SubEventID   *string
	Variation    string
	AttendeeName string
	Price        domain.Money
	VoucherCode  string
}

// CreatePosition imports a ticket. A voucher code, if given, is redeemed in
// the same transaction and its price mode is applied to the submitted price.
func (s *CheckinService) CreatePosition(ctx context.Context, eventID string, in PositionInput) (domain.Position, error) {
	if in.ItemID == "" {
		return domain.Position{}, domain.ErrItemNotFound
	}
	secret := strings.TrimSpace(in.Secret)
	if secret == "" {
		secret = newSecret(20)
	}
	pos := domain.Position{
		ID:           newID(),
		EventID:      eventID,
		Secret:       secret,
		ItemID:       in.ItemID,
		SubEventID:   in.SubEventID,
		Variation:    in.Variation,
		AttendeeName: in.AttendeeName,
		Price:        in.Price,
		CreatedAt:    s.clock.Now(),
	}

	code := strings.TrimSpace(in.VoucherCode)
	if code == "" {
		if err := s.repo.CreatePosition(ctx, pos); err != nil {
			return domain.Position{}, err
		}
		return pos, nil
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		v, err := s.repo.GetVoucherByCode(txCtx, eventID, code)
		if err != nil {
			return err
		}
		if v.ValidUntil != nil && !v.ValidUntil.After(s.clock.Now()) {
			return domain.ErrVoucherNotUsable
		}
		// The counter update guards redeemed < max_usages itself, so
		// concurrent imports cannot oversubscribe the code.
		if err := s.repo.RedeemVoucher(txCtx, v.ID); err != nil {
			return err
		}
		pos.VoucherID = &v.ID
		pos.Price = v.ApplyPrice(in.Price)
		return s.repo.CreatePosition(txCtx, pos)
	})
	if err != nil {
		return domain.Position{}, err
	}
	return pos, nil
}

func (s *CheckinService) GetPosition(ctx context.Context, eventID, id string) (domain.Position, error) {
	return s.repo.GetPosition(ctx, eventID, id)
}

// ListPositions optionally filters by exact secret.
func (s *CheckinService) ListPositions(ctx context.Context, eventID, secret string, page Page) ([]domain.Position, int, error) {
	return s.repo.ListPositions(ctx, eventID, secret, page.Limit(), page.Offset())
}

func (s *CheckinService) DeletePosition(ctx context.Context, eventID, id string) error {
	return s.repo.DeletePosition(ctx, eventID, id)
}

type CheckinListInput struct {
	Name            string
	AllProducts     bool
	LimitProductIDs []string
	SubEventID      *string
	IncludePending  bool
}

func (s *CheckinService) CreateList(ctx context.Context, eventID string, in CheckinListInput) (domain.CheckinList, error) {
	if in.Name == "" {
		return domain.CheckinList{}, domain.ErrNameRequired
	}
	list := domain.CheckinList{
		ID:              newID(),
		EventID:         eventID,
		Name:            in.Name,
		AllProducts:     in.AllProducts,
		LimitProductIDs: in.LimitProductIDs,
		SubEventID:      in.SubEventID,
		IncludePending:  in.IncludePending,
	}
	if err := s.repo.CreateList(ctx, list); err != nil {
		return domain.CheckinList{}, err
	}
	return list, nil
}

func (s *CheckinService) GetList(ctx context.Context, eventID, id string) (domain.CheckinList, error) {
	return s.repo.GetList(ctx, eventID, id)
}

func (s *CheckinService) ListLists(ctx context.Context, eventID string, page Page) ([]domain.CheckinList, int, error) {
	return s.repo.ListLists(ctx, eventID, page.Limit(), page.Offset())
}

// ReplaceList implements PUT semantics.
func (s *CheckinService) ReplaceList(ctx context.Context, eventID, id string, in CheckinListInput) (domain.CheckinList, error) {
	if in.Name == "" {
		return domain.CheckinList{}, domain.ErrNameRequired
	}
	list, err := s.repo.GetList(ctx, eventID, id)
	if err != nil {
		return domain.CheckinList{}, err
	}
	list.Name = in.Name
	list.AllProducts = in.AllProducts
	list.LimitProductIDs = in.LimitProductIDs
	list.SubEventID = in.SubEventID
	list.IncludePending = in.IncludePending
	if err := s.repo.UpdateList(ctx, list); err != nil {
		return domain.CheckinList{}, err
	}
	return list, nil
}

type UpdateCheckinListInput struct {
	Name            *string
	AllProducts     *bool
	LimitProductIDs *[]string
	SubEventID      **string
	IncludePending  *bool
}

func (s *CheckinService) UpdateList(ctx context.Context, eventID, id string, in UpdateCheckinListInput) (domain.CheckinList, error) {
	list, err := s.repo.GetList(ctx, eventID, id)
	if err != nil {
		return domain.CheckinList{}, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return domain.CheckinList{}, domain.ErrNameRequired
		}
		list.Name = *in.Name
	}
	if in.AllProducts != nil {
		list.AllProducts = *in.AllProducts
	}
	if in.LimitProductIDs != nil {
		list.LimitProductIDs = *in.LimitProductIDs
	}
	if in.SubEventID != nil {
		list.SubEventID = *in.SubEventID
	}
	if in.IncludePending != nil {
		list.IncludePending = *in.IncludePending
	}
	if err := s.repo.UpdateList(ctx, list); err != nil {
		return domain.CheckinList{}, err
	}
	return list, nil
}

func (s *CheckinService) DeleteList(ctx context.Context, eventID, id string) error {
	return s.repo.DeleteList(ctx, eventID, id)
}

func (s *CheckinService) Status(ctx context.Context, eventID, id string) (domain.ListStatus, error) {
	list, err := s.repo.GetList(ctx, eventID, id)
	if err != nil {
		return domain.ListStatus{}, err
	}
	return s.repo.Status(ctx, list)
}

func (s *CheckinService) ListCheckins(ctx context.Context, eventID, listID string, page Page) ([]domain.Checkin, int, error) {
	if _, err := s.repo.GetList(ctx, eventID, listID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListCheckins(ctx, listID, page.Limit(), page.Offset())
}

type RedeemInput struct {
	Nonce    string
	Type     domain.CheckinType
	Datetime *time.Time
	Force    bool
}

type RedeemResult struct {
	Checkin  domain.Checkin
	Position domain.Position
	// Replayed is set when the nonce matched a stored check-in, i.e. this
	// request was a retry of a scan that already succeeded.
	Replayed bool
}

// Redeem records a scan of the position with the given secret on a check-in
// list. The client-supplied nonce makes retries idempotent: a nonce that was
// seen before returns the stored check-in instead of failing or duplicating.
func (s *CheckinService) Redeem(ctx context.Context, organizerID, eventID, listID, secret string, in RedeemInput) (RedeemResult, error) {
	if in.Nonce == "" {
		return RedeemResult{}, domain.ErrNonceRequired
	}
	typ := in.Type
	if typ == "" {
		typ = domain.CheckinTypeEntry
	}

	list, err := s.repo.GetList(ctx, eventID, listID)
	if err != nil {
		return RedeemResult{}, err
	}
	pos, err := s.repo.GetPositionBySecret(ctx, eventID, secret)
	if err != nil {
		return RedeemResult{}, err
	}
	if !list.IncludesItem(pos.ItemID) {
		return RedeemResult{}, domain.ErrProductNotOnList
	}
	if list.SubEventID != nil && (pos.SubEventID == nil || *pos.SubEventID != *list.SubEventID) {
		return RedeemResult{}, domain.ErrProductNotOnList
	}

	when := s.clock.Now()
	if in.Datetime != nil {
		when = in.Datetime.UTC()
	}

	var result RedeemResult
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if existing, err := s.repo.FindCheckinByNonce(txCtx, list.ID, pos.ID, in.Nonce); err != nil {
			return err
		} else if existing != nil {
			result = RedeemResult{Checkin: *existing, Position: pos, Replayed: true}
			return nil
		}

		if typ == domain.CheckinTypeEntry && !in.Force {
			entry, err := s.repo.FindEntry(txCtx, list.ID, pos.ID)
			if err != nil {
				return err
			}
			if entry != nil {
				return domain.ErrAlreadyRedeemed
			}
		}

		checkin := domain.Checkin{
			ID:         newID(),
			ListID:     list.ID,
			PositionID: pos.ID,
			Type:       typ,
			Nonce:      in.Nonce,
			Datetime:   when,
			Forced:     in.Force,
		}
		if err := s.repo.CreateCheckin(txCtx, checkin); err != nil {
			// A concurrent retry with the same nonce may win the insert race;
			// re-read to keep idempotent retries consistent.
			if err == domain.ErrAlreadyRedeemed {
				existing, rerr := s.repo.FindCheckinByNonce(txCtx, list.ID, pos.ID, in.Nonce)
				if rerr != nil {
					return rerr
				}
				if existing != nil {
					result = RedeemResult{Checkin: *existing, Position: pos, Replayed: true}
					return nil
				}
			}
			return err
		}
		result = RedeemResult{Checkin: checkin, Position: pos}
		return nil
	})
	if err != nil {
		return RedeemResult{}, err
	}
	if s.notifier != nil && !result.Replayed {
		_ = s.notifier.Notify(ctx, organizerID, eventID, Notification{
			Organizer: organizerID,
			Event:     eventID,
			Action:    "checkin.created",
			Data: map[string]any{
				"list":     list.ID,
				"position": pos.ID,
				"type":     string(typ),
			},
		})
	}
	return result, nil
}
