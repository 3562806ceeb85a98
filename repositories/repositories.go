package repositories

import (
	"context"
	"database/sql"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx. A nil executor means
// "use the repository's own handle".
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxFunc is the body of a transaction. It may run more than once when the
// transaction is retried, so it must not leak state between attempts.
type TxFunc func(ctx context.Context, exec SQLExecutor) error

// Transactor runs fn atomically: either every write made through exec is
// committed or none is.
type Transactor interface {
	InTx(ctx context.Context, fn TxFunc) error
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Tournament, error)
	// GetCurrent returns the most recent tournament that is not completed.
	GetCurrent(ctx context.Context, exec SQLExecutor) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id uuid.UUID, status models.TournamentStatus) error
	// Complete stores the winner and moves the tournament to completed.
	Complete(ctx context.Context, exec SQLExecutor, id uuid.UUID, winnerID uuid.UUID) error
}

type GroupRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, groups []*models.Group) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Group, error)
	// ListByTournament returns groups in declaration order.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]*models.Group, error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Participant, error)
	GetByIDs(ctx context.Context, exec SQLExecutor, ids []uuid.UUID) (map[uuid.UUID]*models.Participant, error)
	// GetByIDsForUpdate locks the rows in id order.
	GetByIDsForUpdate(ctx context.Context, exec SQLExecutor, ids []uuid.UUID) (map[uuid.UUID]*models.Participant, error)
	// ListByGroup returns members in registration order.
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]*models.Participant, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, includeByes bool) ([]*models.Participant, error)
	// ExistsByName compares names case-insensitively and ignores byes.
	ExistsByName(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID, name string) (bool, error)
	IncrementStats(ctx context.Context, exec SQLExecutor, id uuid.UUID, delta models.StatsDelta) error
	SetSeed(ctx context.Context, exec SQLExecutor, id uuid.UUID, seed int) error
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// CreateBracket inserts the matches first and links them in a second pass.
	CreateBracket(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.Match, error)
	ListByGroup(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) ([]*models.Match, error)
	// ListBracket returns every non-group match ordered by round and position.
	ListBracket(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) ([]*models.Match, error)
	GetConsolationForUpdate(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (*models.Match, error)
	AppendSet(ctx context.Context, exec SQLExecutor, matchID uuid.UUID, set models.Set) error
	// UpdateState persists participants, status and winner of m.
	UpdateState(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// CountUnresolvedBracket counts finals/semifinal/final matches that are
	// not completed, ignoring exclude.
	CountUnresolvedBracket(ctx context.Context, exec SQLExecutor, tournamentID, exclude uuid.UUID) (int, error)
	// CountCompletedPairings counts distinct unordered pairs of current group
	// members among completed group matches.
	CountCompletedPairings(ctx context.Context, exec SQLExecutor, groupID uuid.UUID) (int, error)
	HasBracket(ctx context.Context, exec SQLExecutor, tournamentID uuid.UUID) (bool, error)
}

// Store groups the repositories a service needs.
type Store struct {
	Tx           Transactor
	Tournaments  TournamentRepository
	Groups       GroupRepository
	Participants ParticipantRepository
	Matches      MatchRepository
}

func NewPostgresStore(db *sql.DB, tx Transactor) Store {
	return Store{
		Tx:           tx,
		Tournaments:  NewPostgresTournamentRepository(db),
		Groups:       NewPostgresGroupRepository(db),
		Participants: NewPostgresParticipantRepository(db),
		Matches:      NewPostgresMatchRepository(db),
	}
}
