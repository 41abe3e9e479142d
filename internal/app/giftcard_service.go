package app

import (
	"context"
	"strings"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type GiftCardRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, card domain.GiftCard) error
	// GetForUpdate locks the gift card row for the duration of the
	// surrounding transaction.
	GetForUpdate(ctx context.Context, organizerID, id string) (domain.GiftCard, error)
	Get(ctx context.Context, organizerID, id string) (domain.GiftCard, error)
	List(ctx context.Context, organizerID string, limit, offset int) ([]domain.GiftCard, int, error)
	Update(ctx context.Context, card domain.GiftCard) error
	Delete(ctx context.Context, organizerID, id string) error

	CreateTransaction(ctx context.Context, tx domain.GiftCardTransaction) error
	ListTransactions(ctx context.Context, cardID string, limit, offset int) ([]domain.GiftCardTransaction, int, error)
	SumTransactions(ctx context.Context, cardID string) (domain.Money, error)
	HasTransactions(ctx context.Context, cardID string) (bool, error)
}

type GiftCardService struct {
	repo     GiftCardRepository
	clock    clock.Clock
	notifier Notifier
}

func NewGiftCardService(repo GiftCardRepository, clk clock.Clock) *GiftCardService {
	return &GiftCardService{repo: repo, clock: clk}
}

func (s *GiftCardService) SetNotifier(n Notifier) {
	s.notifier = n
}

type GiftCardInput struct {
	Secret     string
	Currency   string
	Testmode   bool
	Expires    *time.Time
	Conditions string
	Value      domain.Money
}

func (s *GiftCardService) Create(ctx context.Context, organizerID string, in GiftCardInput) (domain.GiftCard, error) {
	if in.Currency == "" {
		in.Currency = "EUR"
	}
	secret := strings.TrimSpace(in.Secret)
	if secret == "" {
		secret = newSecret(16)
	}

	card := domain.GiftCard{
		ID:          newID(),
		OrganizerID: organizerID,
		Secret:      secret,
		Currency:    in.Currency,
		Testmode:    in.Testmode,
		Expires:     in.Expires,
		Conditions:  in.Conditions,
		CreatedAt:   s.clock.Now(),
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, card); err != nil {
			return err
		}
		if in.Value != 0 {
			if in.Value < 0 {
				return domain.ErrInsufficientCredit
			}
			card.Value = in.Value
			return s.repo.CreateTransaction(txCtx, domain.GiftCardTransaction{
				ID:         newID(),
				GiftCardID: card.ID,
				Value:      in.Value,
				Text:       "initial value",
				CreatedAt:  s.clock.Now(),
			})
		}
		return nil
	})
	if err != nil {
		return domain.GiftCard{}, err
	}
	return card, nil
}

func (s *GiftCardService) Get(ctx context.Context, organizerID, id string) (domain.GiftCard, error) {
	return s.repo.Get(ctx, organizerID, id)
}

func (s *GiftCardService) List(ctx context.Context, organizerID string, page Page) ([]domain.GiftCard, int, error) {
	return s.repo.List(ctx, organizerID, page.Limit(), page.Offset())
}

type UpdateGiftCardInput struct {
	Expires    **time.Time
	Conditions *string
}

func (s *GiftCardService) Update(ctx context.Context, organizerID, id string, in UpdateGiftCardInput) (domain.GiftCard, error) {
	card, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return domain.GiftCard{}, err
	}
	if in.Expires != nil {
		card.Expires = *in.Expires
	}
	if in.Conditions != nil {
		card.Conditions = *in.Conditions
	}
	if err := s.repo.Update(ctx, card); err != nil {
		return domain.GiftCard{}, err
	}
	return card, nil
}

// Delete removes a gift card that has never been transacted on.
func (s *GiftCardService) Delete(ctx context.Context, organizerID, id string) error {
	card, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return err
	}
	has, err := s.repo.HasTransactions(ctx, card.ID)
	if err != nil {
		return err
	}
	if has {
		return domain.ErrGiftCardUsed
	}
	return s.repo.Delete(ctx, organizerID, id)
}

type TransactInput struct {
	Value domain.Money
	Text  string
	// Currency, when set, must match the card's currency.
	Currency string
}

// Transact atomically applies a credit or debit. The card row is locked for
// the duration of the transaction so the balance check and the insert cannot
// interleave with a concurrent debit; a debit below zero is rejected.
func (s *GiftCardService) Transact(ctx context.Context, organizerID, id string, in TransactInput) (domain.GiftCard, error) {
	var result domain.GiftCard
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		card, err := s.repo.GetForUpdate(txCtx, organizerID, id)
		if err != nil {
			return err
		}
		if in.Currency != "" && in.Currency != card.Currency {
			return domain.ErrCurrencyMismatch
		}
		balance, err := s.repo.SumTransactions(txCtx, card.ID)
		if err != nil {
			return err
		}
		if balance+in.Value < 0 {
			return domain.ErrInsufficientCredit
		}
		if err := s.repo.CreateTransaction(txCtx, domain.GiftCardTransaction{
			ID:         newID(),
			GiftCardID: card.ID,
			Value:      in.Value,
			Text:       in.Text,
			CreatedAt:  s.clock.Now(),
		}); err != nil {
			return err
		}
		card.Value = balance + in.Value
		result = card
		return nil
	})
	if err != nil {
		return domain.GiftCard{}, err
	}
	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, organizerID, "", Notification{
			Organizer: organizerID,
			Action:    "giftcard.transacted",
			Data: map[string]any{
				"gift_card": result.ID,
				"value":     in.Value.String(),
				"balance":   result.Value.String(),
			},
		})
	}
	return result, nil
}

func (s *GiftCardService) ListTransactions(ctx context.Context, organizerID, id string, page Page) ([]domain.GiftCardTransaction, int, error) {
	card, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.ListTransactions(ctx, card.ID, page.Limit(), page.Offset())
}
