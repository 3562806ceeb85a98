package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, number_of_groups, max_participants_per_group, qualifiers_per_group,
	status, winner_id, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	var winner uuid.NullUUID
	err := row.Scan(
		&t.ID, &t.Name, &t.NumberOfGroups, &t.MaxParticipantsPerGroup, &t.QualifiersPerGroup,
		&t.Status, &winner, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.WinnerID = idFromNull(winner)
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO tournaments (
			id, name, number_of_groups, max_participants_per_group, qualifiers_per_group, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := executor.ExecContext(ctx, query,
		t.ID, t.Name, t.NumberOfGroups, t.MaxParticipantsPerGroup, t.QualifiersPerGroup, t.Status, t.CreatedAt,
	)
	return mapError("create tournament", err, nil)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	return r.get(ctx, r.getExecutor(exec), `SELECT`+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	return r.get(ctx, r.getExecutor(exec), `SELECT`+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) GetCurrent(ctx context.Context, exec SQLExecutor) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE status <> $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.get(ctx, r.getExecutor(exec), query, models.StatusCompleted)
}

func (r *postgresTournamentRepository) get(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) (*models.Tournament, error) {
	t, err := scanTournament(executor.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError("get tournament", err, ErrTournamentNotFound)
	}

	rows, err := executor.QueryContext(ctx,
		`SELECT id FROM groups WHERE tournament_id = $1 ORDER BY position`, t.ID)
	if err != nil {
		return nil, mapError("list tournament groups", err, nil)
	}
	defer rows.Close()

	t.GroupIDs = make([]uuid.UUID, 0, t.NumberOfGroups)
	for rows.Next() {
		var gid uuid.UUID
		if err := rows.Scan(&gid); err != nil {
			return nil, mapError("scan tournament group", err, nil)
		}
		t.GroupIDs = append(t.GroupIDs, gid)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate tournament groups", err, nil)
	}
	return t, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournaments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return mapError("update tournament status", err, nil)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Complete(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerID uuid.UUID) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET winner_id = $1, status = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, winnerID, models.StatusCompleted, id)
	if err != nil {
		return mapError("complete tournament", err, nil)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
