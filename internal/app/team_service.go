package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type TeamRepository interface {
	Create(ctx context.Context, team domain.Team) error
	Get(ctx context.Context, organizerID, id string) (domain.Team, error)
	List(ctx context.Context, organizerID string, limit, offset int) ([]domain.Team, int, error)
	Update(ctx context.Context, team domain.Team) error
	Delete(ctx context.Context, organizerID, id string) error

	CreateToken(ctx context.Context, tok domain.APIToken) error
	ListTokens(ctx context.Context, teamID string) ([]domain.APIToken, error)
	DeactivateToken(ctx context.Context, teamID, id string) error
	// FindActiveTokenByHash resolves a presented token to its team.
	FindActiveTokenByHash(ctx context.Context, hash string) (domain.APIToken, domain.Team, error)
}

type TeamService struct {
	repo  TeamRepository
	clock clock.Clock
}

func NewTeamService(repo TeamRepository, clk clock.Clock) *TeamService {
	return &TeamService{repo: repo, clock: clk}
}

type TeamInput struct {
	Name          string
	AllEvents     bool
	LimitEventIDs []string

	CanChangeOrganizerSettings bool
	CanChangeEventSettings     bool
	CanChangeItems             bool
	CanManageGiftCards         bool
	CanCheckin                 bool
	CanViewOrders              bool
}

func (s *TeamService) Create(ctx context.Context, organizerID string, in TeamInput) (domain.Team, error) {
	if in.Name == "" {
		return domain.Team{}, domain.ErrNameRequired
	}
	team := domain.Team{
		ID:            newID(),
		OrganizerID:   organizerID,
		Name:          in.Name,
		AllEvents:     in.AllEvents,
		LimitEventIDs: in.LimitEventIDs,

		CanChangeOrganizerSettings: in.CanChangeOrganizerSettings,
		CanChangeEventSettings:     in.CanChangeEventSettings,
		CanChangeItems:             in.CanChangeItems,
		CanManageGiftCards:         in.CanManageGiftCards,
		CanCheckin:                 in.CanCheckin,
		CanViewOrders:              in.CanViewOrders,
	}
	if err := s.repo.Create(ctx, team); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

func (s *TeamService) Get(ctx context.Context, organizerID, id string) (domain.Team, error) {
	return s.repo.Get(ctx, organizerID, id)
}

func (s *TeamService) List(ctx context.Context, organizerID string, page Page) ([]domain.Team, int, error) {
	return s.repo.List(ctx, organizerID, page.Limit(), page.Offset())
}

func (s *TeamService) Update(ctx context.Context, organizerID, id string, in TeamInput) (domain.Team, error) {
	if in.Name == "" {
		return domain.Team{}, domain.ErrNameRequired
	}
	team, err := s.repo.Get(ctx, organizerID, id)
	if err != nil {
		return domain.Team{}, err
	}
	team.Name = in.Name
	team.AllEvents = in.AllEvents
	team.LimitEventIDs = in.LimitEventIDs
	team.CanChangeOrganizerSettings = in.CanChangeOrganizerSettings
	team.CanChangeEventSettings = in.CanChangeEventSettings
	team.CanChangeItems = in.CanChangeItems
	team.CanManageGiftCards = in.CanManageGiftCards
	team.CanCheckin = in.CanCheckin
	team.CanViewOrders = in.CanViewOrders
	if err := s.repo.Update(ctx, team); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

func (s *TeamService) Delete(ctx context.Context, organizerID, id string) error {
	return s.repo.Delete(ctx, organizerID, id)
}

// CreateToken mints a new API token for the team. The plaintext value is
// returned exactly once; only its hash is stored.
func (s *TeamService) CreateToken(ctx context.Context, organizerID, teamID, name string) (domain.APIToken, string, error) {
	team, err := s.repo.Get(ctx, organizerID, teamID)
	if err != nil {
		return domain.APIToken{}, "", err
	}
	plaintext := newSecret(32)
	tok := domain.APIToken{
		ID:        newID(),
		TeamID:    team.ID,
		Name:      name,
		Active:    true,
		TokenHash: hashToken(plaintext),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateToken(ctx, tok); err != nil {
		return domain.APIToken{}, "", err
	}
	return tok, plaintext, nil
}

func (s *TeamService) ListTokens(ctx context.Context, organizerID, teamID string) ([]domain.APIToken, error) {
	team, err := s.repo.Get(ctx, organizerID, teamID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTokens(ctx, team.ID)
}

func (s *TeamService) RevokeToken(ctx context.Context, organizerID, teamID, id string) error {
	team, err := s.repo.Get(ctx, organizerID, teamID)
	if err != nil {
		return err
	}
	return s.repo.DeactivateToken(ctx, team.ID, id)
}

// Authenticate resolves a presented token value. Any failure collapses to
// ErrInvalidToken so callers cannot distinguish unknown from revoked tokens.
func (s *TeamService) Authenticate(ctx context.Context, token string) (domain.Team, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Team{}, domain.ErrInvalidToken
	}
	_, team, err := s.repo.FindActiveTokenByHash(ctx, hashToken(token))
	if err != nil {
		return domain.Team{}, domain.ErrInvalidToken
	}
	return team, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
