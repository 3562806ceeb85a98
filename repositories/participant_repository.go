package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `
	id, name, region, tournament_id, group_id, group_points, elim_points,
	victories, total_sets, seed, is_bye, created_at`

func scanParticipant(row interface{ Scan(...interface{}) error }) (*models.Participant, error) {
	p := &models.Participant{}
	var group uuid.NullUUID
	var seed sql.NullInt64
	err := row.Scan(
		&p.ID, &p.Name, &p.Region, &p.TournamentID, &group, &p.GroupPoints, &p.ElimPoints,
		&p.Victories, &p.TotalSets, &seed, &p.IsBye, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.GroupID = idFromNull(group)
	if seed.Valid {
		s := int(seed.Int64)
		p.Seed = &s
	}
	return p, nil
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	executor := r.getExecutor(exec)
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO participants (
			id, name, region, tournament_id, group_id, group_points, elim_points,
			victories, total_sets, seed, is_bye, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var seed sql.NullInt64
	if p.Seed != nil {
		seed = sql.NullInt64{Int64: int64(*p.Seed), Valid: true}
	}
	_, err := executor.ExecContext(ctx, query,
		p.ID, p.Name, p.Region, p.TournamentID, nullID(p.GroupID), p.GroupPoints, p.ElimPoints,
		p.Victories, p.TotalSets, seed, p.IsBye, p.CreatedAt,
	)
	return mapError("create participant", err, nil)
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	p, err := scanParticipant(executor.QueryRowContext(ctx,
		`SELECT`+participantColumns+` FROM participants WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("get participant", err, ErrParticipantNotFound)
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []uuid.UUID) (map[uuid.UUID]*models.Participant, error) {
	return r.getMany(ctx, r.getExecutor(exec), ids, false)
}

func (r *postgresParticipantRepository) GetByIDsForUpdate(ctx context.Context, exec SQLExecutor, ids []uuid.UUID) (map[uuid.UUID]*models.Participant, error) {
	return r.getMany(ctx, r.getExecutor(exec), ids, true)
}

func (r *postgresParticipantRepository) getMany(ctx context.Context, executor SQLExecutor, ids []uuid.UUID, lock bool) (map[uuid.UUID]*models.Participant, error) {
	ids = dedupeIDs(ids)
	out := make(map[uuid.UUID]*models.Participant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT` + participantColumns + ` FROM participants WHERE id = ANY($1::uuid[]) ORDER BY id`
	if lock {
		query += ` FOR UPDATE`
	}
	list, err := r.list(ctx, executor, query, idArray(ids))
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w (%s)", ErrParticipantNotFound, id)
		}
	}
	return out, nil
}

func (r *postgresParticipantRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]*models.Participant, error) {
	query := `SELECT` + participantColumns + `
		FROM participants
		WHERE group_id = $1 AND NOT is_bye
		ORDER BY created_at, id`
	return r.list(ctx, r.getExecutor(exec), query, groupID)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, includeByes bool) ([]*models.Participant, error) {
	query := `SELECT` + participantColumns + ` FROM participants WHERE tournament_id = $1`
	if !includeByes {
		query += ` AND NOT is_bye`
	}
	query += ` ORDER BY created_at, id`
	return r.list(ctx, r.getExecutor(exec), query, tournamentID)
}

func (r *postgresParticipantRepository) list(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Participant, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list participants", err, nil)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, mapError("scan participant", err, nil)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate participants", err, nil)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) ExistsByName(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, name string) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM participants
			WHERE tournament_id = $1 AND lower(name) = $2 AND NOT is_bye
		)`, tournamentID, strings.ToLower(strings.TrimSpace(name)),
	).Scan(&exists)
	if err != nil {
		return false, mapError("check participant name", err, nil)
	}
	return exists, nil
}

func (r *postgresParticipantRepository) IncrementStats(ctx context.Context, exec SQLExecutor, id uuid.UUID, d models.StatsDelta) error {
	if d.IsZero() {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `
		UPDATE participants SET
			group_points = group_points + $1,
			elim_points  = elim_points + $2,
			victories    = victories + $3,
			total_sets   = total_sets + $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query, d.GroupPoints, d.ElimPoints, d.Victories, d.TotalSets, id)
	if err != nil {
		return mapError("increment participant stats", err, nil)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) SetSeed(ctx context.Context, exec SQLExecutor, id uuid.UUID, seed int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE participants SET seed = $1 WHERE id = $2`, seed, id)
	if err != nil {
		return mapError("set participant seed", err, nil)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
