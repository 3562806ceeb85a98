package brackets

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

var ErrNotEnoughEntrants = fmt.Errorf("%w: at least two entrants are required to build a bracket", apperr.ErrValidation)

// Bracket is a freshly built elimination tree. Match IDs are assigned up
// front so that links can be persisted in a second pass.
type Bracket struct {
	TournamentID uuid.UUID
	TotalRounds  int
	Rounds       [][]*models.Match
	Consolation  *models.Match
	Byes         []*models.Participant
}

// Matches lists every match, round by round, consolation last.
func (b *Bracket) Matches() []*models.Match {
	var all []*models.Match
	for _, round := range b.Rounds {
		all = append(all, round...)
	}
	if b.Consolation != nil {
		all = append(all, b.Consolation)
	}
	return all
}

func (b *Bracket) Final() *models.Match {
	return b.Rounds[len(b.Rounds)-1][0]
}

// IsBye reports whether id belongs to one of the synthetic opponents of b.
func (b *Bracket) IsBye(id uuid.UUID) bool {
	for _, p := range b.Byes {
		if p.ID == id {
			return true
		}
	}
	return false
}

type node struct {
	participant *models.Participant
	bye         bool
}

// Build creates the bracket for entrants ordered by seed (index 0 is seed 1).
// Seeds facing a slot beyond len(entrants) get a bye; bye matches are created
// completed and their winners are advanced before Build returns.
func Build(tournamentID uuid.UUID, entrants []*models.Participant) (*Bracket, error) {
	n := len(entrants)
	if n < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrNotEnoughEntrants, n)
	}
	seen := make(map[uuid.UUID]struct{}, n)
	for _, p := range entrants {
		if p == nil || p.IsBye {
			return nil, fmt.Errorf("%w: bracket entrants must be real participants", apperr.ErrValidation)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: participant %s entered twice", apperr.ErrValidation, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	size := NextPowerOfTwo(n)
	b := &Bracket{TournamentID: tournamentID, TotalRounds: TotalRounds(n)}
	now := time.Now().UTC()

	slots := make([]node, 0, size)
	for _, seed := range SeedOrder(size) {
		if seed > n {
			slots = append(slots, node{bye: true})
			continue
		}
		slots = append(slots, node{participant: entrants[seed-1]})
	}

	first := make([]*models.Match, 0, size/2)
	for i := 0; i < len(slots); i += 2 {
		m := b.newMatch(1, len(first)+1, now)
		n1, n2 := slots[i], slots[i+1]
		switch {
		case n1.participant != nil && n2.participant != nil:
			m.Participant1ID = models.IDPtr(n1.participant.ID)
			m.Participant2ID = models.IDPtr(n2.participant.ID)
			m.Status = models.MatchStatusScheduled
		case n1.participant != nil || n2.participant != nil:
			seeded := n1.participant
			if seeded == nil {
				seeded = n2.participant
			}
			bye := b.newBye(tournamentID, now)
			m.Participant1ID = models.IDPtr(seeded.ID)
			m.Participant2ID = models.IDPtr(bye.ID)
			m.Status = models.MatchStatusCompleted
			m.WinnerID = models.IDPtr(seeded.ID)
		default:
			// Unreachable while byes < size/2.
			return nil, errors.New("brackets: two byes met in the first round")
		}
		first = append(first, m)
	}
	b.Rounds = append(b.Rounds, first)

	// Each pass pairs the previous round until a single match (the final) remains.
	for prev := first; len(prev) > 1; {
		round := len(b.Rounds) + 1
		next := make([]*models.Match, 0, len(prev)/2)
		for i := 0; i < len(prev); i += 2 {
			m := b.newMatch(round, len(next)+1, now)
			m.Status = models.MatchStatusPending
			m.PreviousMatch1ID = models.IDPtr(prev[i].ID)
			m.PreviousMatch2ID = models.IDPtr(prev[i+1].ID)
			prev[i].NextMatchID = models.IDPtr(m.ID)
			prev[i+1].NextMatchID = models.IDPtr(m.ID)
			next = append(next, m)
		}
		b.Rounds = append(b.Rounds, next)
		prev = next
	}

	b.Consolation = &models.Match{
		ID:                uuid.New(),
		TournamentID:      tournamentID,
		Stage:             models.StageConsolation,
		Status:            models.MatchStatusPending,
		Round:             ConsolationRound(b.TotalRounds),
		OrderInRound:      1,
		IsThirdPlaceMatch: true,
		CreatedAt:         now,
	}

	if len(b.Rounds) > 1 {
		byID := make(map[uuid.UUID]*models.Match, len(b.Rounds[1]))
		for _, m := range b.Rounds[1] {
			byID[m.ID] = m
		}
		for _, m := range first {
			if !m.IsCompleted() {
				continue
			}
			if _, err := Advance(m, byID[*m.NextMatchID], b.Consolation, b.IsBye); err != nil {
				return nil, fmt.Errorf("advance bye match %d: %w", m.OrderInRound, err)
			}
		}
	}
	return b, nil
}

func (b *Bracket) newMatch(round, order int, now time.Time) *models.Match {
	return &models.Match{
		ID:           uuid.New(),
		TournamentID: b.TournamentID,
		Stage:        StageForRound(round, b.TotalRounds),
		Round:        round,
		OrderInRound: order,
		CreatedAt:    now,
	}
}

func (b *Bracket) newBye(tournamentID uuid.UUID, now time.Time) *models.Participant {
	p := &models.Participant{
		ID:           uuid.New(),
		Name:         models.ByeName,
		TournamentID: tournamentID,
		IsBye:        true,
		CreatedAt:    now,
	}
	b.Byes = append(b.Byes, p)
	return p
}
