package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
)

type tournamentRepository struct{ s *Store }

func (r *tournamentRepository) Create(_ context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	defer r.s.lock(exec)()
	for _, existing := range r.s.tournaments {
		if !existing.v.IsCompleted() {
			return repositories.ErrActiveTournamentExists
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.s.now()
	}
	r.s.tournaments[t.ID] = row[*models.Tournament]{r.s.nextSeq(), cloneTournament(t)}
	return nil
}

func (r *tournamentRepository) GetByID(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	defer r.s.lock(exec)()
	return r.get(id)
}

func (r *tournamentRepository) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id uuid.UUID) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *tournamentRepository) GetCurrent(_ context.Context, exec repositories.SQLExecutor) (*models.Tournament, error) {
	defer r.s.lock(exec)()
	running := sortedRows(r.s.tournaments, func(t *models.Tournament) bool { return !t.IsCompleted() })
	if len(running) == 0 {
		return nil, repositories.ErrTournamentNotFound
	}
	return r.get(running[len(running)-1].ID)
}

func (r *tournamentRepository) get(id uuid.UUID) (*models.Tournament, error) {
	stored, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	t := cloneTournament(stored.v)
	gs := sortedRows(r.s.groups, func(g *models.Group) bool { return g.TournamentID == id })
	t.GroupIDs = make([]uuid.UUID, 0, len(gs))
	for _, g := range sortByPosition(gs) {
		t.GroupIDs = append(t.GroupIDs, g.ID)
	}
	return t, nil
}

func (r *tournamentRepository) UpdateStatus(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID, status models.TournamentStatus) error {
	defer r.s.lock(exec)()
	stored, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	stored.v.Status = status
	return nil
}

func (r *tournamentRepository) Complete(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID, winnerID uuid.UUID) error {
	defer r.s.lock(exec)()
	stored, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if _, ok := r.s.participants[winnerID]; !ok {
		return fmt.Errorf("%w (winner %s)", repositories.ErrInvalidReference, winnerID)
	}
	stored.v.WinnerID = models.IDPtr(winnerID)
	stored.v.Status = models.StatusCompleted
	return nil
}

type groupRepository struct{ s *Store }

func (r *groupRepository) CreateBatch(_ context.Context, exec repositories.SQLExecutor, gs []*models.Group) error {
	defer r.s.lock(exec)()
	for _, g := range gs {
		if _, ok := r.s.tournaments[g.TournamentID]; !ok {
			return fmt.Errorf("%w (tournament %s)", repositories.ErrInvalidReference, g.TournamentID)
		}
		for _, existing := range r.s.groups {
			if existing.v.TournamentID == g.TournamentID && existing.v.Name == g.Name {
				return repositories.ErrGroupNameConflict
			}
		}
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		stored := cloneGroup(g)
		stored.ParticipantIDs, stored.MatchIDs = nil, nil
		r.s.groups[g.ID] = row[*models.Group]{r.s.nextSeq(), stored}
	}
	return nil
}

func (r *groupRepository) GetByID(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID) (*models.Group, error) {
	defer r.s.lock(exec)()
	stored, ok := r.s.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	return r.withMembers(stored.v), nil
}

func (r *groupRepository) ListByTournament(_ context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID) ([]*models.Group, error) {
	defer r.s.lock(exec)()
	gs := sortByPosition(sortedRows(r.s.groups, func(g *models.Group) bool { return g.TournamentID == tournamentID }))
	out := make([]*models.Group, 0, len(gs))
	for _, g := range gs {
		out = append(out, r.withMembers(g))
	}
	return out, nil
}

func (r *groupRepository) withMembers(stored *models.Group) *models.Group {
	g := cloneGroup(stored)
	g.ParticipantIDs = []uuid.UUID{}
	g.MatchIDs = []uuid.UUID{}
	for _, p := range sortedRows(r.s.participants, inGroup(g.ID)) {
		g.ParticipantIDs = append(g.ParticipantIDs, p.ID)
	}
	for _, m := range sortedRows(r.s.matches, func(m *models.Match) bool {
		return m.GroupID != nil && *m.GroupID == g.ID
	}) {
		g.MatchIDs = append(g.MatchIDs, m.ID)
	}
	return g
}

func sortByPosition(gs []*models.Group) []*models.Group {
	out := append([]*models.Group(nil), gs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func inGroup(groupID uuid.UUID) func(*models.Participant) bool {
	return func(p *models.Participant) bool {
		return !p.IsBye && p.GroupID != nil && *p.GroupID == groupID
	}
}

type participantRepository struct{ s *Store }

func (r *participantRepository) Create(_ context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	defer r.s.lock(exec)()
	if _, ok := r.s.tournaments[p.TournamentID]; !ok {
		return fmt.Errorf("%w (tournament %s)", repositories.ErrInvalidReference, p.TournamentID)
	}
	if p.GroupID != nil {
		if _, ok := r.s.groups[*p.GroupID]; !ok {
			return fmt.Errorf("%w (group %s)", repositories.ErrInvalidReference, *p.GroupID)
		}
	}
	if !p.IsBye && r.nameTaken(p.TournamentID, p.Name) {
		return repositories.ErrParticipantNameConflict
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.s.now()
	}
	r.s.participants[p.ID] = row[*models.Participant]{r.s.nextSeq(), cloneParticipant(p)}
	return nil
}

func (r *participantRepository) nameTaken(tournamentID uuid.UUID, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, existing := range r.s.participants {
		p := existing.v
		if p.TournamentID == tournamentID && !p.IsBye && strings.ToLower(p.Name) == name {
			return true
		}
	}
	return false
}

func (r *participantRepository) GetByID(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID) (*models.Participant, error) {
	defer r.s.lock(exec)()
	stored, ok := r.s.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	return cloneParticipant(stored.v), nil
}

func (r *participantRepository) GetByIDs(_ context.Context, exec repositories.SQLExecutor, ids []uuid.UUID) (map[uuid.UUID]*models.Participant, error) {
	defer r.s.lock(exec)()
	out := make(map[uuid.UUID]*models.Participant, len(ids))
	for _, id := range ids {
		stored, ok := r.s.participants[id]
		if !ok {
			return nil, fmt.Errorf("%w (%s)", repositories.ErrParticipantNotFound, id)
		}
		out[id] = cloneParticipant(stored.v)
	}
	return out, nil
}

func (r *participantRepository) GetByIDsForUpdate(ctx context.Context, exec repositories.SQLExecutor, ids []uuid.UUID) (map[uuid.UUID]*models.Participant, error) {
	return r.GetByIDs(ctx, exec, ids)
}

func (r *participantRepository) ListByGroup(_ context.Context, exec repositories.SQLExecutor, groupID uuid.UUID) ([]*models.Participant, error) {
	defer r.s.lock(exec)()
	return cloneParticipants(sortedRows(r.s.participants, inGroup(groupID))), nil
}

func (r *participantRepository) ListByTournament(_ context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID, includeByes bool) ([]*models.Participant, error) {
	defer r.s.lock(exec)()
	return cloneParticipants(sortedRows(r.s.participants, func(p *models.Participant) bool {
		return p.TournamentID == tournamentID && (includeByes || !p.IsBye)
	})), nil
}

func (r *participantRepository) ExistsByName(_ context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID, name string) (bool, error) {
	defer r.s.lock(exec)()
	return r.nameTaken(tournamentID, name), nil
}

func (r *participantRepository) IncrementStats(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID, d models.StatsDelta) error {
	defer r.s.lock(exec)()
	stored, ok := r.s.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	stored.v.Apply(d)
	return nil
}

func (r *participantRepository) SetSeed(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID, seed int) error {
	defer r.s.lock(exec)()
	stored, ok := r.s.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	stored.v.Seed = &seed
	return nil
}

func cloneParticipants(ps []*models.Participant) []*models.Participant {
	out := make([]*models.Participant, len(ps))
	for i, p := range ps {
		out[i] = cloneParticipant(p)
	}
	return out
}

type matchRepository struct{ s *Store }

func (r *matchRepository) Create(_ context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	defer r.s.lock(exec)()
	return r.insert(m)
}

func (r *matchRepository) CreateBracket(_ context.Context, exec repositories.SQLExecutor, ms []*models.Match) error {
	defer r.s.lock(exec)()
	for _, m := range ms {
		if err := r.insert(m); err != nil {
			return err
		}
	}
	return nil
}

func (r *matchRepository) insert(m *models.Match) error {
	if _, ok := r.s.tournaments[m.TournamentID]; !ok {
		return fmt.Errorf("%w (tournament %s)", repositories.ErrInvalidReference, m.TournamentID)
	}
	for _, pid := range m.Participants() {
		if _, ok := r.s.participants[pid]; !ok {
			return fmt.Errorf("%w (participant %s)", repositories.ErrInvalidReference, pid)
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.now()
	}
	if m.Sets == nil {
		m.Sets = []models.Set{}
	}
	r.s.matches[m.ID] = row[*models.Match]{r.s.nextSeq(), m.Clone()}
	return nil
}

func (r *matchRepository) GetByID(_ context.Context, exec repositories.SQLExecutor, id uuid.UUID) (*models.Match, error) {
	defer r.s.lock(exec)()
	stored, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return stored.v.Clone(), nil
}

func (r *matchRepository) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id uuid.UUID) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *matchRepository) ListByGroup(_ context.Context, exec repositories.SQLExecutor, groupID uuid.UUID) ([]*models.Match, error) {
	defer r.s.lock(exec)()
	return cloneMatches(sortedRows(r.s.matches, func(m *models.Match) bool {
		return m.GroupID != nil && *m.GroupID == groupID
	})), nil
}

func (r *matchRepository) ListBracket(_ context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID) ([]*models.Match, error) {
	defer r.s.lock(exec)()
	ms := cloneMatches(sortedRows(r.s.matches, func(m *models.Match) bool {
		return m.TournamentID == tournamentID && m.Stage != models.StageGroup
	}))
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Round != ms[j].Round {
			return ms[i].Round < ms[j].Round
		}
		return ms[i].OrderInRound < ms[j].OrderInRound
	})
	return ms, nil
}

func (r *matchRepository) GetConsolationForUpdate(_ context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID) (*models.Match, error) {
	defer r.s.lock(exec)()
	found := sortedRows(r.s.matches, func(m *models.Match) bool {
		return m.TournamentID == tournamentID && m.IsThirdPlaceMatch
	})
	if len(found) == 0 {
		return nil, repositories.ErrMatchNotFound
	}
	return found[0].Clone(), nil
}

func (r *matchRepository) AppendSet(_ context.Context, exec repositories.SQLExecutor, matchID uuid.UUID, set models.Set) error {
	defer r.s.lock(exec)()
	stored, ok := r.s.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	for _, existing := range stored.v.Sets {
		if existing.Number == set.Number {
			return repositories.ErrSetNumberConflict
		}
	}
	stored.v.Sets = append(stored.v.Sets, set)
	return nil
}

func (r *matchRepository) UpdateState(_ context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	defer r.s.lock(exec)()
	stored, ok := r.s.matches[m.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	for _, pid := range m.Participants() {
		if _, ok := r.s.participants[pid]; !ok {
			return fmt.Errorf("%w (participant %s)", repositories.ErrInvalidReference, pid)
		}
	}
	c := m.Clone()
	stored.v.Participant1ID = c.Participant1ID
	stored.v.Participant2ID = c.Participant2ID
	stored.v.Status = c.Status
	stored.v.WinnerID = c.WinnerID
	return nil
}

func (r *matchRepository) CountUnresolvedBracket(_ context.Context, exec repositories.SQLExecutor, tournamentID, exclude uuid.UUID) (int, error) {
	defer r.s.lock(exec)()
	n := 0
	for id, stored := range r.s.matches {
		m := stored.v
		if id != exclude && m.TournamentID == tournamentID && m.Stage.IsBracket() && !m.IsCompleted() {
			n++
		}
	}
	return n, nil
}

func (r *matchRepository) CountCompletedPairings(_ context.Context, exec repositories.SQLExecutor, groupID uuid.UUID) (int, error) {
	defer r.s.lock(exec)()
	members := sortedRows(r.s.participants, inGroup(groupID))
	ids := make([]uuid.UUID, len(members))
	for i, p := range members {
		ids[i] = p.ID
	}
	ms := sortedRows(r.s.matches, func(m *models.Match) bool {
		return m.GroupID != nil && *m.GroupID == groupID
	})
	return groups.UniquePairings(ids, ms), nil
}

func (r *matchRepository) HasBracket(_ context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID) (bool, error) {
	defer r.s.lock(exec)()
	for _, stored := range r.s.matches {
		if stored.v.TournamentID == tournamentID && stored.v.Stage != models.StageGroup {
			return true, nil
		}
	}
	return false, nil
}

func cloneMatches(ms []*models.Match) []*models.Match {
	out := make([]*models.Match, len(ms))
	for i, m := range ms {
		out[i] = m.Clone()
	}
	return out
}
