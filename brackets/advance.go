package brackets

import (
	"fmt"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/progression"
	"github.com/google/uuid"
)

var (
	ErrNotCompleted   = fmt.Errorf("%w: match has no winner yet", apperr.ErrState)
	ErrSlotsFull      = fmt.Errorf("%w: next match already has two other participants", apperr.ErrConflict)
	ErrBrokenLink     = fmt.Errorf("%w: bracket linkage is inconsistent", apperr.ErrState)
	ErrWinnerRequired = fmt.Errorf("%w: winner id is required", apperr.ErrValidation)
)

// ByeFunc reports whether a participant id is a synthetic bye.
type ByeFunc func(uuid.UUID) bool

// Result reports what Advance changed.
type Result struct {
	WinnerID           uuid.UUID
	LoserID            *uuid.UUID
	NextChanged        bool
	ConsolationChanged bool
	FinalDecided       bool
}

// ResolveWinner picks the winner of m. A match against a bye always goes to
// the seeded participant; a completed match keeps its recorded winner and
// rejects a different supplied one.
func ResolveWinner(m *models.Match, supplied *uuid.UUID, isBye ByeFunc) (uuid.UUID, error) {
	ids := m.Participants()
	for _, id := range ids {
		if !isBye(id) {
			continue
		}
		other := m.Opponent(id)
		if other == nil || isBye(*other) {
			return uuid.Nil, fmt.Errorf("%w: bye match %s has no seeded participant", ErrBrokenLink, m.ID)
		}
		return *other, nil
	}
	if m.IsCompleted() && m.WinnerID != nil {
		if supplied != nil && *supplied != *m.WinnerID {
			return uuid.Nil, progression.ErrWinnerMismatch
		}
		return *m.WinnerID, nil
	}
	if supplied == nil {
		return uuid.Nil, ErrWinnerRequired
	}
	if !m.HasParticipant(*supplied) {
		return uuid.Nil, progression.ErrWinnerNotInMatch
	}
	return *supplied, nil
}

// Advance moves the winner of the completed match done into next and, for a
// semifinal, its loser into consolation. next and consolation may be nil when
// done has no next match or the tournament has no third-place match. Calling
// Advance again for the same match changes nothing.
func Advance(done, next, consolation *models.Match, isBye ByeFunc) (Result, error) {
	if !done.IsCompleted() || done.WinnerID == nil {
		return Result{}, ErrNotCompleted
	}
	res := Result{WinnerID: *done.WinnerID}

	switch {
	case done.NextMatchID == nil:
		res.FinalDecided = done.Stage == models.StageFinal
	case next == nil || next.ID != *done.NextMatchID:
		return Result{}, fmt.Errorf("%w: next match of %s not supplied", ErrBrokenLink, done.ID)
	default:
		slot := next.SlotFor(done.ID)
		if slot < 0 {
			return Result{}, fmt.Errorf("%w: match %s is not a feeder of %s", ErrBrokenLink, done.ID, next.ID)
		}
		changed, err := place(next, slot, res.WinnerID)
		if err != nil {
			return Result{}, err
		}
		res.NextChanged = changed
	}

	if done.Stage == models.StageSemifinal {
		if loser := done.Opponent(res.WinnerID); loser != nil && !isBye(*loser) {
			res.LoserID = loser
			if consolation != nil {
				slot := done.OrderInRound - 1
				if slot < 0 || slot > 1 {
					slot = 0
				}
				changed, err := place(consolation, slot, *loser)
				if err != nil {
					return Result{}, err
				}
				res.ConsolationChanged = changed
			}
		}
	}
	return res, nil
}

// place puts id into slot of m, falling back to the other slot when the
// preferred one is taken. It promotes m from pending to scheduled once both
// slots are filled.
func place(m *models.Match, slot int, id uuid.UUID) (bool, error) {
	if m.HasParticipant(id) {
		return false, nil
	}
	if m.IsCompleted() {
		return false, fmt.Errorf("%w: match %s is already completed", apperr.ErrConflict, m.ID)
	}
	slots := [2]**uuid.UUID{&m.Participant1ID, &m.Participant2ID}
	switch {
	case *slots[slot] == nil:
		*slots[slot] = models.IDPtr(id)
	case *slots[1-slot] == nil:
		*slots[1-slot] = models.IDPtr(id)
	default:
		return false, fmt.Errorf("%w (match %s)", ErrSlotsFull, m.ID)
	}
	if m.Participant1ID != nil && m.Participant2ID != nil && m.Status == models.MatchStatusPending {
		m.Status = models.MatchStatusScheduled
	}
	return true, nil
}
