package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/tessera-live/tessera/internal/clock"
	"github.com/tessera-live/tessera/internal/domain"
)

type fakeTeamRepo struct {
	teams  map[string]domain.Team
	tokens map[string]domain.APIToken
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{
		teams:  make(map[string]domain.Team),
		tokens: make(map[string]domain.APIToken),
	}
}

func (f *fakeTeamRepo) Create(_ context.Context, team domain.Team) error {
	f.teams[team.ID] = team
	return nil
}

func (f *fakeTeamRepo) Get(_ context.Context, organizerID, id string) (domain.Team, error) {
	team, ok := f.teams[id]
	if !ok || team.OrganizerID != organizerID {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeTeamRepo) List(_ context.Context, organizerID string, limit, offset int) ([]domain.Team, int, error) {
	var out []domain.Team
	for _, team := range f.teams {
		if team.OrganizerID == organizerID {
			out = append(out, team)
		}
	}
	return out, len(out), nil
}

func (f *fakeTeamRepo) Update(_ context.Context, team domain.Team) error {
	if _, ok := f.teams[team.ID]; !ok {
		return domain.ErrTeamNotFound
	}
	f.teams[team.ID] = team
	return nil
}

func (f *fakeTeamRepo) Delete(_ context.Context, organizerID, id string) error {
	team, ok := f.teams[id]
	if !ok || team.OrganizerID != organizerID {
		return domain.ErrTeamNotFound
	}
	delete(f.teams, id)
	return nil
}

func (f *fakeTeamRepo) CreateToken(_ context.Context, tok domain.APIToken) error {
	f.tokens[tok.ID] = tok
	return nil
}

func (f *fakeTeamRepo) ListTokens(_ context.Context, teamID string) ([]domain.APIToken, error) {
	var out []domain.APIToken
	for _, tok := range f.tokens {
		if tok.TeamID == teamID {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (f *fakeTeamRepo) DeactivateToken(_ context.Context, teamID, id string) error {
	tok, ok := f.tokens[id]
	if !ok || tok.TeamID != teamID {
		return domain.ErrTokenNotFound
	}
	tok.Active = false
	f.tokens[id] = tok
	return nil
}

func (f *fakeTeamRepo) FindActiveTokenByHash(_ context.Context, hash string) (domain.APIToken, domain.Team, error) {
	for _, tok := range f.tokens {
		if tok.TokenHash == hash && tok.Active {
			return tok, f.teams[tok.TeamID], nil
		}
	}
	return domain.APIToken{}, domain.Team{}, domain.ErrTokenNotFound
}

func TestTeamService_CreateToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeTeamRepo()
	repo.teams["team-1"] = domain.Team{ID: "team-1", OrganizerID: "org-1", Name: "Box office"}
	svc := NewTeamService(repo, clock.NewFixed(now))

	tok, plaintext, err := svc.CreateToken(context.Background(), "org-1", "team-1", "scanner")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	if plaintext == "" {
		t.Fatalf("expected a plaintext token")
	}
	if tok.TokenHash == plaintext {
		t.Fatalf("token must not be stored in plaintext")
	}
	sum := sha256.Sum256([]byte(plaintext))
	if want := hex.EncodeToString(sum[:]); tok.TokenHash != want {
		t.Fatalf("stored hash = %q, want sha256 of plaintext", tok.TokenHash)
	}
	if !tok.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v, want clock time", tok.CreatedAt)
	}

	_, _, err = svc.CreateToken(context.Background(), "org-other", "team-1", "scanner")
	if !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("foreign organizer: got %v, want ErrTeamNotFound", err)
	}
}

func TestTeamService_Authenticate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newFakeTeamRepo()
	repo.teams["team-1"] = domain.Team{ID: "team-1", OrganizerID: "org-1", Name: "Box office", CanCheckin: true}
	svc := NewTeamService(repo, clock.NewFixed(now))

	_, plaintext, err := svc.CreateToken(context.Background(), "org-1", "team-1", "scanner")
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	t.Run("valid token resolves its team", func(t *testing.T) {
		team, err := svc.Authenticate(context.Background(), plaintext)
		if err != nil {
			t.Fatalf("authenticate: %v", err)
		}
		if team.ID != "team-1" || !team.CanCheckin {
			t.Fatalf("resolved team = %+v", team)
		}
	})

	t.Run("surrounding whitespace is tolerated", func(t *testing.T) {
		if _, err := svc.Authenticate(context.Background(), "  "+plaintext+"\n"); err != nil {
			t.Fatalf("authenticate: %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "no-such-token")
		if !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "")
		if !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("got %v, want ErrInvalidToken", err)
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		toks, err := svc.ListTokens(context.Background(), "org-1", "team-1")
		if err != nil || len(toks) != 1 {
			t.Fatalf("list tokens: %v (%d)", err, len(toks))
		}
		if err := svc.RevokeToken(context.Background(), "org-1", "team-1", toks[0].ID); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		_, err = svc.Authenticate(context.Background(), plaintext)
		if !errors.Is(err, domain.ErrInvalidToken) {
			t.Fatalf("got %v, want ErrInvalidToken after revocation", err)
		}
	})
}

func TestTeamService_RevokeToken_Unknown(t *testing.T) {
	t.Parallel()

	repo := newFakeTeamRepo()
	repo.teams["team-1"] = domain.Team{ID: "team-1", OrganizerID: "org-1", Name: "Box office"}
	svc := NewTeamService(repo, clock.NewFixed(time.Now()))

	err := svc.RevokeToken(context.Background(), "org-1", "team-1", "tok-missing")
	if !errors.Is(err, domain.ErrTokenNotFound) {
		t.Fatalf("got %v, want ErrTokenNotFound", err)
	}
}

func TestTeamService_Create_RequiresName(t *testing.T) {
	t.Parallel()

	svc := NewTeamService(newFakeTeamRepo(), clock.NewFixed(time.Now()))
	_, err := svc.Create(context.Background(), "org-1", TeamInput{})
	if !errors.Is(err, domain.ErrNameRequired) {
		t.Fatalf("got %v, want ErrNameRequired", err)
	}
}
