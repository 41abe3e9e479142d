package app

import (
	"context"

	"github.com/tessera-live/tessera/internal/domain"
)

type OrganizerRepository interface {
	GetBySlug(ctx context.Context, slug string) (domain.Organizer, error)
	List(ctx context.Context, ids []string, limit, offset int) ([]domain.Organizer, int, error)
	UpdateName(ctx context.Context, id, name string) error
}

type OrganizerService struct {
	repo OrganizerRepository
}

func NewOrganizerService(repo OrganizerRepository) *OrganizerService {
	return &OrganizerService{repo: repo}
}

func (s *OrganizerService) Get(ctx context.Context, slug string) (domain.Organizer, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// List returns only the organizers in the visible set, which callers derive
// from the authenticated team.
func (s *OrganizerService) List(ctx context.Context, visibleIDs []string, page Page) ([]domain.Organizer, int, error) {
	return s.repo.List(ctx, visibleIDs, page.Limit(), page.Offset())
}

type UpdateOrganizerInput struct {
	Name *string
}

func (s *OrganizerService) Update(ctx context.Context, slug string, in UpdateOrganizerInput) (domain.Organizer, error) {
	org, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Organizer{}, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return domain.Organizer{}, domain.ErrNameRequired
		}
		org.Name = *in.Name
		if err := s.repo.UpdateName(ctx, org.ID, org.Name); err != nil {
			return domain.Organizer{}, err
		}
	}
	return org, nil
}
