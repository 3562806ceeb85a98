package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, group_id, participant1_id, participant2_id, stage, status, winner_id,
	round, order_in_round, previous_match1_id, previous_match2_id, next_match_id,
	is_third_place_match, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{Sets: []models.Set{}}
	var group, p1, p2, winner, prev1, prev2, next uuid.NullUUID
	err := row.Scan(
		&m.ID, &m.TournamentID, &group, &p1, &p2, &m.Stage, &m.Status, &winner,
		&m.Round, &m.OrderInRound, &prev1, &prev2, &next,
		&m.IsThirdPlaceMatch, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.GroupID = idFromNull(group)
	m.Participant1ID = idFromNull(p1)
	m.Participant2ID = idFromNull(p2)
	m.WinnerID = idFromNull(winner)
	m.PreviousMatch1ID = idFromNull(prev1)
	m.PreviousMatch2ID = idFromNull(prev2)
	m.NextMatchID = idFromNull(next)
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	if err := r.insert(ctx, executor, m); err != nil {
		return err
	}
	if len(m.PreviousMatches()) > 0 || m.NextMatchID != nil {
		return r.updateLinks(ctx, executor, m)
	}
	return nil
}

func (r *postgresMatchRepository) CreateBracket(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := r.getExecutor(exec)
	// Первый проход: вставляем матчи без ссылок, второй: проставляем связи.
	for _, m := range matches {
		if err := r.insert(ctx, executor, m); err != nil {
			return err
		}
	}
	for _, m := range matches {
		if len(m.PreviousMatches()) == 0 && m.NextMatchID == nil {
			continue
		}
		if err := r.updateLinks(ctx, executor, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMatchRepository) insert(ctx context.Context, executor SQLExecutor, m *models.Match) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Sets == nil {
		m.Sets = []models.Set{}
	}
	query := `
		INSERT INTO matches (
			id, tournament_id, group_id, participant1_id, participant2_id, stage, status, winner_id,
			round, order_in_round, is_third_place_match, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := executor.ExecContext(ctx, query,
		m.ID, m.TournamentID, nullID(m.GroupID), nullID(m.Participant1ID), nullID(m.Participant2ID),
		m.Stage, m.Status, nullID(m.WinnerID), m.Round, m.OrderInRound, m.IsThirdPlaceMatch, m.CreatedAt,
	)
	if err != nil {
		return mapError("create match", err, nil)
	}
	for _, s := range m.Sets {
		if err := r.AppendSet(ctx, executor, m.ID, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMatchRepository) updateLinks(ctx context.Context, executor SQLExecutor, m *models.Match) error {
	query := `
		UPDATE matches SET previous_match1_id = $1, previous_match2_id = $2, next_match_id = $3
		WHERE id = $4`
	result, err := executor.ExecContext(ctx, query,
		nullID(m.PreviousMatch1ID), nullID(m.PreviousMatch2ID), nullID(m.NextMatchID), m.ID)
	if err != nil {
		return mapError("link match", err, nil)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error) {
	return r.getOne(ctx, r.getExecutor(exec), `SELECT`+matchColumns+` FROM matches WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error) {
	return r.getOne(ctx, r.getExecutor(exec), `SELECT`+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) GetConsolationForUpdate(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1 AND is_third_place_match
		LIMIT 1
		FOR UPDATE`
	return r.getOne(ctx, r.getExecutor(exec), query, tournamentID)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) (*models.Match, error) {
	m, err := scanMatch(executor.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError("get match", err, ErrMatchNotFound)
	}
	if err := r.attachSets(ctx, executor, []*models.Match{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE group_id = $1 ORDER BY created_at, id`
	return r.list(ctx, r.getExecutor(exec), query, groupID)
}

func (r *postgresMatchRepository) ListBracket(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1 AND stage <> $2
		ORDER BY round, order_in_round`
	return r.list(ctx, r.getExecutor(exec), query, tournamentID, models.StageGroup)
}

func (r *postgresMatchRepository) list(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list matches", err, nil)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, mapError("scan match", err, nil)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate matches", err, nil)
	}
	if err := r.attachSets(ctx, executor, matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) attachSets(ctx context.Context, executor SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Match, len(matches))
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	rows, err := executor.QueryContext(ctx, `
		SELECT match_id, number, participant1_points, participant2_points, winner_id
		FROM match_sets
		WHERE match_id = ANY($1::uuid[])
		ORDER BY match_id, number`, idArray(ids))
	if err != nil {
		return mapError("list match sets", err, nil)
	}
	defer rows.Close()
	for rows.Next() {
		var matchID uuid.UUID
		var s models.Set
		if err := rows.Scan(&matchID, &s.Number, &s.Participant1Points, &s.Participant2Points, &s.WinnerID); err != nil {
			return mapError("scan match set", err, nil)
		}
		if m, ok := byID[matchID]; ok {
			m.Sets = append(m.Sets, s)
		}
	}
	return mapError("iterate match sets", rows.Err(), nil)
}

func (r *postgresMatchRepository) AppendSet(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, s models.Set) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_sets (match_id, number, participant1_points, participant2_points, winner_id)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := executor.ExecContext(ctx, query, matchID, s.Number, s.Participant1Points, s.Participant2Points, s.WinnerID)
	return mapError("append match set", err, nil)
}

func (r *postgresMatchRepository) UpdateState(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches SET participant1_id = $1, participant2_id = $2, status = $3, winner_id = $4
		WHERE id = $5`
	result, err := executor.ExecContext(ctx, query,
		nullID(m.Participant1ID), nullID(m.Participant2ID), m.Status, nullID(m.WinnerID), m.ID)
	if err != nil {
		return mapError("update match", err, nil)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountUnresolvedBracket(ctx context.Context, exec SQLExecutor, tournamentID, exclude uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var n int
	err := executor.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM matches
		WHERE tournament_id = $1
		  AND stage IN ($2, $3, $4)
		  AND status <> $5
		  AND id <> $6`,
		tournamentID, models.StageFinals, models.StageSemifinal, models.StageFinal,
		models.MatchStatusCompleted, exclude,
	).Scan(&n)
	if err != nil {
		return 0, mapError("count unresolved matches", err, nil)
	}
	return n, nil
}

func (r *postgresMatchRepository) CountCompletedPairings(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) (int, error) {
	executor := r.getExecutor(exec)
	var n int
	err := executor.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT DISTINCT
				LEAST(m.participant1_id, m.participant2_id) AS low,
				GREATEST(m.participant1_id, m.participant2_id) AS high
			FROM matches m
			JOIN participants p1 ON p1.id = m.participant1_id AND p1.group_id = m.group_id
			JOIN participants p2 ON p2.id = m.participant2_id AND p2.group_id = m.group_id
			WHERE m.group_id = $1
			  AND m.stage = $2
			  AND m.status = $3
			  AND m.participant1_id <> m.participant2_id
		) pairs`,
		groupID, models.StageGroup, models.MatchStatusCompleted,
	).Scan(&n)
	if err != nil {
		return 0, mapError("count completed pairings", err, nil)
	}
	return n, nil
}

func (r *postgresMatchRepository) HasBracket(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (bool, error) {
	executor := r.getExecutor(exec)
	var exists bool
	err := executor.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE tournament_id = $1 AND stage <> $2)`,
		tournamentID, models.StageGroup,
	).Scan(&exists)
	if err != nil {
		return false, mapError("check bracket", err, nil)
	}
	return exists, nil
}
