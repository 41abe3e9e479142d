package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tessera-live/tessera/internal/domain"
)

type TeamRepository struct {
	pool *pgxpool.Pool
}

func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{pool: pool}
}

const teamColumns = `id, organizer_id, name, all_events, limit_event_ids,
	can_change_organizer_settings, can_change_event_settings, can_change_items,
	can_manage_gift_cards, can_checkin, can_view_orders`

func scanTeam(row pgx.Row) (domain.Team, error) {
	var t domain.Team
	err := row.Scan(&t.ID, &t.OrganizerID, &t.Name, &t.AllEvents, &t.LimitEventIDs,
		&t.CanChangeOrganizerSettings, &t.CanChangeEventSettings, &t.CanChangeItems,
		&t.CanManageGiftCards, &t.CanCheckin, &t.CanViewOrders)
	return t, err
}

func (r *TeamRepository) Create(ctx context.Context, t domain.Team) error {
	const stmt = `
INSERT INTO teams (id, organizer_id, name, all_events, limit_event_ids,
	can_change_organizer_settings, can_change_event_settings, can_change_items,
	can_manage_gift_cards, can_checkin, can_view_orders)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := exec(ctx, r.pool, stmt, t.ID, t.OrganizerID, t.Name, t.AllEvents, t.LimitEventIDs,
		t.CanChangeOrganizerSettings, t.CanChangeEventSettings, t.CanChangeItems,
		t.CanManageGiftCards, t.CanCheckin, t.CanViewOrders)
	if err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

func (r *TeamRepository) Get(ctx context.Context, organizerID, id string) (domain.Team, error) {
	q := `SELECT ` + teamColumns + ` FROM teams WHERE organizer_id = $1 AND id = $2`
	t, err := scanTeam(queryRow(ctx, r.pool, q, organizerID, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Team{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, fmt.Errorf("get team: %w", err)
	}
	return t, nil
}

func (r *TeamRepository) List(ctx context.Context, organizerID string, limit, offset int) ([]domain.Team, int, error) {
	var total int
	if err := queryRow(ctx, r.pool, `SELECT COUNT(*) FROM teams WHERE organizer_id = $1`, organizerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count teams: %w", err)
	}

	q := `SELECT ` + teamColumns + ` FROM teams WHERE organizer_id = $1 ORDER BY name, id LIMIT $2 OFFSET $3`
	rows, err := query(ctx, r.pool, q, organizerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *TeamRepository) Update(ctx context.Context, t domain.Team) error {
	const stmt = `
UPDATE teams
SET name = $2, all_events = $3, limit_event_ids = $4,
	can_change_organizer_settings = $5, can_change_event_settings = $6, can_change_items = $7,
	can_manage_gift_cards = $8, can_checkin = $9, can_view_orders = $10
WHERE id = $1`
	tag, err := exec(ctx, r.pool, stmt, t.ID, t.Name, t.AllEvents, t.LimitEventIDs,
		t.CanChangeOrganizerSettings, t.CanChangeEventSettings, t.CanChangeItems,
		t.CanManageGiftCards, t.CanCheckin, t.CanViewOrders)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r *TeamRepository) Delete(ctx context.Context, organizerID, id string) error {
	tag, err := exec(ctx, r.pool, `DELETE FROM teams WHERE organizer_id = $1 AND id = $2`, organizerID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("delete team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r *TeamRepository) CreateToken(ctx context.Context, tok domain.APIToken) error {
	const stmt = `
INSERT INTO api_tokens (id, team_id, name, active, token_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := exec(ctx, r.pool, stmt, tok.ID, tok.TeamID, tok.Name, tok.Active, tok.TokenHash, tok.CreatedAt)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

func (r *TeamRepository) ListTokens(ctx context.Context, teamID string) ([]domain.APIToken, error) {
	const q = `
SELECT id, team_id, name, active, token_hash, created_at
FROM api_tokens
WHERE team_id = $1
ORDER BY created_at, id`
	rows, err := query(ctx, r.pool, q, teamID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	out := make([]domain.APIToken, 0)
	for rows.Next() {
		var t domain.APIToken
		if err := rows.Scan(&t.ID, &t.TeamID, &t.Name, &t.Active, &t.TokenHash, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TeamRepository) DeactivateToken(ctx context.Context, teamID, id string) error {
	tag, err := exec(ctx, r.pool, `UPDATE api_tokens SET active = false WHERE team_id = $1 AND id = $2`, teamID, id)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("deactivate token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *TeamRepository) FindActiveTokenByHash(ctx context.Context, hash string) (domain.APIToken, domain.Team, error) {
	const q = `
SELECT tok.id, tok.team_id, tok.name, tok.active, tok.token_hash, tok.created_at,
	t.id, t.organizer_id, t.name, t.all_events, t.limit_event_ids,
	t.can_change_organizer_settings, t.can_change_event_settings, t.can_change_items,
	t.can_manage_gift_cards, t.can_checkin, t.can_view_orders
FROM api_tokens tok
JOIN teams t ON t.id = tok.team_id
WHERE tok.token_hash = $1 AND tok.active`
	var tok domain.APIToken
	var team domain.Team
	err := queryRow(ctx, r.pool, q, hash).Scan(
		&tok.ID, &tok.TeamID, &tok.Name, &tok.Active, &tok.TokenHash, &tok.CreatedAt,
		&team.ID, &team.OrganizerID, &team.Name, &team.AllEvents, &team.LimitEventIDs,
		&team.CanChangeOrganizerSettings, &team.CanChangeEventSettings, &team.CanChangeItems,
		&team.CanManageGiftCards, &team.CanCheckin, &team.CanViewOrders)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.APIToken{}, domain.Team{}, domain.ErrInvalidToken
		}
		return domain.APIToken{}, domain.Team{}, fmt.Errorf("find token: %w", err)
	}
	return tok, team, nil
}
