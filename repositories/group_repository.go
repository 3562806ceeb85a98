package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGroupRepository) CreateBatch(ctx context.Context, exec SQLExecutor, groups []*models.Group) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO groups (id, tournament_id, name, position, max_participants, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	now := time.Now().UTC()
	for _, g := range groups {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		if _, err := executor.ExecContext(ctx, query, g.ID, g.TournamentID, g.Name, g.Position, g.Max, now); err != nil {
			return mapError("create group", err, nil)
		}
	}
	return nil
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Group, error) {
	executor := r.getExecutor(exec)
	g := &models.Group{}
	err := executor.QueryRowContext(ctx,
		`SELECT id, tournament_id, name, position, max_participants FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.TournamentID, &g.Name, &g.Position, &g.Max)
	if err != nil {
		return nil, mapError("get group", err, ErrGroupNotFound)
	}
	if err := r.attachMembers(ctx, executor, []*models.Group{g}); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *postgresGroupRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]*models.Group, error) {
	executor := r.getExecutor(exec)
	rows, err := executor.QueryContext(ctx, `
		SELECT id, tournament_id, name, position, max_participants
		FROM groups
		WHERE tournament_id = $1
		ORDER BY position`, tournamentID)
	if err != nil {
		return nil, mapError("list groups", err, nil)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.TournamentID, &g.Name, &g.Position, &g.Max); err != nil {
			return nil, mapError("scan group", err, nil)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate groups", err, nil)
	}
	if err := r.attachMembers(ctx, executor, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// attachMembers fills ParticipantIDs and MatchIDs from the owning tables.
func (r *postgresGroupRepository) attachMembers(ctx context.Context, executor SQLExecutor, groups []*models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Group, len(groups))
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		g.ParticipantIDs = []uuid.UUID{}
		g.MatchIDs = []uuid.UUID{}
		byID[g.ID] = g
		ids = append(ids, g.ID)
	}

	fill := func(query string, add func(g *models.Group, id uuid.UUID)) error {
		rows, err := executor.QueryContext(ctx, query, idArray(ids))
		if err != nil {
			return mapError("list group members", err, nil)
		}
		defer rows.Close()
		for rows.Next() {
			var gid, id uuid.UUID
			if err := rows.Scan(&gid, &id); err != nil {
				return mapError("scan group member", err, nil)
			}
			add(byID[gid], id)
		}
		return mapError("iterate group members", rows.Err(), nil)
	}

	err := fill(`
		SELECT group_id, id FROM participants
		WHERE group_id = ANY($1::uuid[]) AND NOT is_bye
		ORDER BY created_at, id`,
		func(g *models.Group, id uuid.UUID) { g.ParticipantIDs = append(g.ParticipantIDs, id) })
	if err != nil {
		return err
	}
	return fill(`
		SELECT group_id, id FROM matches
		WHERE group_id = ANY($1::uuid[])
		ORDER BY created_at, id`,
		func(g *models.Group, id uuid.UUID) { g.MatchIDs = append(g.MatchIDs, id) })
}
