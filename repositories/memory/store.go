// Package memory is an in-process implementation of the repositories
// interfaces. Transactions hold a store-wide lock and are rolled back by
// restoring a snapshot, so it is intended for tests and single-process demos.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
)

var errNoSQL = errors.New("memory: SQL is not supported")

type row[T any] struct {
	seq int64
	v   T
}

type Store struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	tournaments  map[uuid.UUID]row[*models.Tournament]
	groups       map[uuid.UUID]row[*models.Group]
	participants map[uuid.UUID]row[*models.Participant]
	matches      map[uuid.UUID]row[*models.Match]
}

type Option func(*Store)

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:          func() time.Time { return time.Now().UTC() },
		tournaments:  map[uuid.UUID]row[*models.Tournament]{},
		groups:       map[uuid.UUID]row[*models.Group]{},
		participants: map[uuid.UUID]row[*models.Participant]{},
		matches:      map[uuid.UUID]row[*models.Match]{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories returns a repositories.Store backed by s.
func (s *Store) Repositories() repositories.Store {
	return repositories.Store{
		Tx:           s,
		Tournaments:  &tournamentRepository{s: s},
		Groups:       &groupRepository{s: s},
		Participants: &participantRepository{s: s},
		Matches:      &matchRepository{s: s},
	}
}

// txExec marks calls made inside InTx; the store lock is already held.
type txExec struct {
	s *Store
}

func (txExec) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (txExec) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (txExec) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (s *Store) InTx(ctx context.Context, fn repositories.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return apperr.Dependency("begin transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	if err = fn(ctx, txExec{s: s}); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apperr.Dependency("commit transaction", ctxErr)
	}
	return nil
}

// lock acquires the store lock unless exec belongs to a running transaction.
func (s *Store) lock(exec repositories.SQLExecutor) func() {
	if tx, ok := exec.(txExec); ok && tx.s == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

type snapshot struct {
	seq          int64
	tournaments  map[uuid.UUID]row[*models.Tournament]
	groups       map[uuid.UUID]row[*models.Group]
	participants map[uuid.UUID]row[*models.Participant]
	matches      map[uuid.UUID]row[*models.Match]
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		seq:          s.seq,
		tournaments:  make(map[uuid.UUID]row[*models.Tournament], len(s.tournaments)),
		groups:       make(map[uuid.UUID]row[*models.Group], len(s.groups)),
		participants: make(map[uuid.UUID]row[*models.Participant], len(s.participants)),
		matches:      make(map[uuid.UUID]row[*models.Match], len(s.matches)),
	}
	for id, r := range s.tournaments {
		snap.tournaments[id] = row[*models.Tournament]{r.seq, cloneTournament(r.v)}
	}
	for id, r := range s.groups {
		snap.groups[id] = row[*models.Group]{r.seq, cloneGroup(r.v)}
	}
	for id, r := range s.participants {
		snap.participants[id] = row[*models.Participant]{r.seq, cloneParticipant(r.v)}
	}
	for id, r := range s.matches {
		snap.matches[id] = row[*models.Match]{r.seq, r.v.Clone()}
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.seq = snap.seq
	s.tournaments = snap.tournaments
	s.groups = snap.groups
	s.participants = snap.participants
	s.matches = snap.matches
}

// sortedRows returns the values of m in insertion order.
func sortedRows[T any](m map[uuid.UUID]row[T], keep func(T) bool) []T {
	rows := make([]row[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.v) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	if t.WinnerID != nil {
		c.WinnerID = models.IDPtr(*t.WinnerID)
	}
	c.GroupIDs = append([]uuid.UUID(nil), t.GroupIDs...)
	return &c
}

func cloneGroup(g *models.Group) *models.Group {
	c := *g
	c.ParticipantIDs = append([]uuid.UUID(nil), g.ParticipantIDs...)
	c.MatchIDs = append([]uuid.UUID(nil), g.MatchIDs...)
	return &c
}

func cloneParticipant(p *models.Participant) *models.Participant {
	c := *p
	if p.GroupID != nil {
		c.GroupID = models.IDPtr(*p.GroupID)
	}
	if p.Seed != nil {
		seed := *p.Seed
		c.Seed = &seed
	}
	return &c
}
