// Package progression implements the lifecycle of a single match:
// scheduled/pending -> ongoing -> completed.
//
// The functions mutate the match value they are given and report the
// participant statistic increments; persisting both is the caller's job.
package progression

import (
	"fmt"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

// SetsToWin is the majority of a best-of-three match.
const SetsToWin = 2

var (
	ErrMatchCompleted        = fmt.Errorf("%w: match already completed", apperr.ErrConflict)
	ErrNotEnoughParticipants = fmt.Errorf("%w: match does not have two participants", apperr.ErrConflict)
	ErrNegativePoints        = fmt.Errorf("%w: set points must be non-negative", apperr.ErrValidation)
	ErrTiedSet               = fmt.Errorf("%w: set points cannot be equal", apperr.ErrValidation)
	ErrNotPlayable           = fmt.Errorf("%w: match does not accept sets in its current status", apperr.ErrState)
	ErrNotStartable          = fmt.Errorf("%w: match cannot be started in its current status", apperr.ErrState)
	ErrWinnerNotInMatch      = fmt.Errorf("%w: winner is not a participant of the match", apperr.ErrValidation)
	ErrWinnerMismatch        = fmt.Errorf("%w: match already has a different winner", apperr.ErrConflict)
)

var (
	groupPlayable   = map[models.MatchStatus]bool{models.MatchStatusOngoing: true}
	bracketPlayable = map[models.MatchStatus]bool{
		models.MatchStatusScheduled: true,
		models.MatchStatusPending:   true,
		models.MatchStatusOngoing:   true,
	}
)

// Accepts reports whether a match of the given stage takes new sets while in status.
// Group matches are started explicitly; bracket matches may be resumed from
// scheduled or pending because they are never required to be started.
func Accepts(stage models.MatchStage, status models.MatchStatus) bool {
	if stage == models.StageGroup {
		return groupPlayable[status]
	}
	return bracketPlayable[status]
}

// Outcome describes what one RecordSet call changed.
type Outcome struct {
	Set       models.Set
	Completed bool
	WinnerID  *uuid.UUID
	Deltas    map[uuid.UUID]models.StatsDelta
}

// ValidatePoints rejects negative and tied set scores.
func ValidatePoints(p1Points, p2Points int) error {
	if p1Points < 0 || p2Points < 0 {
		return ErrNegativePoints
	}
	if p1Points == p2Points {
		return ErrTiedSet
	}
	return nil
}

// RecordSet appends a set to m and completes it once a participant reaches
// SetsToWin set wins.
func RecordSet(m *models.Match, p1Points, p2Points int) (*Outcome, error) {
	if err := ValidatePoints(p1Points, p2Points); err != nil {
		return nil, err
	}
	if m.IsCompleted() {
		return nil, ErrMatchCompleted
	}
	if m.Participant1ID == nil || m.Participant2ID == nil {
		return nil, ErrNotEnoughParticipants
	}
	if !Accepts(m.Stage, m.Status) {
		return nil, fmt.Errorf("%w (stage %s, status %s)", ErrNotPlayable, m.Stage, m.Status)
	}

	p1, p2 := *m.Participant1ID, *m.Participant2ID
	set := models.Set{
		Number:             len(m.Sets) + 1,
		Participant1Points: p1Points,
		Participant2Points: p2Points,
		WinnerID:           p1,
	}
	if p2Points > p1Points {
		set.WinnerID = p2
	}
	m.Sets = append(m.Sets, set)

	d1, d2 := pointsDelta(m.Stage, p1Points), pointsDelta(m.Stage, p2Points)
	if set.WinnerID == p1 {
		d1.TotalSets++
	} else {
		d2.TotalSets++
	}

	out := &Outcome{Set: set}
	if winner, ok := MajorityWinner(m); ok {
		m.Status = models.MatchStatusCompleted
		m.WinnerID = models.IDPtr(winner)
		out.Completed = true
		out.WinnerID = models.IDPtr(winner)
		if winner == p1 {
			d1.Victories++
		} else {
			d2.Victories++
		}
	} else {
		m.Status = models.MatchStatusOngoing
	}
	out.Deltas = map[uuid.UUID]models.StatsDelta{p1: d1, p2: d2}
	return out, nil
}

// Group and elimination points are separate accumulators.
func pointsDelta(stage models.MatchStage, points int) models.StatsDelta {
	if stage == models.StageGroup {
		return models.StatsDelta{GroupPoints: points}
	}
	return models.StatsDelta{ElimPoints: points}
}

// Tally counts set wins per participant.
func Tally(m *models.Match) map[uuid.UUID]int {
	wins := make(map[uuid.UUID]int, 2)
	for _, s := range m.Sets {
		wins[s.WinnerID]++
	}
	return wins
}

// MajorityWinner returns the first participant, in set order, to reach SetsToWin.
func MajorityWinner(m *models.Match) (uuid.UUID, bool) {
	wins := make(map[uuid.UUID]int, 2)
	for _, s := range m.Sets {
		wins[s.WinnerID]++
		if wins[s.WinnerID] >= SetsToWin {
			return s.WinnerID, true
		}
	}
	return uuid.Nil, false
}

// Start moves a bracket match with both slots filled from scheduled to ongoing.
func Start(m *models.Match) error {
	if m.IsCompleted() {
		return ErrMatchCompleted
	}
	if m.Participant1ID == nil || m.Participant2ID == nil {
		return ErrNotEnoughParticipants
	}
	switch m.Status {
	case models.MatchStatusOngoing:
		return nil
	case models.MatchStatusScheduled, models.MatchStatusPending:
		m.Status = models.MatchStatusOngoing
		return nil
	}
	return fmt.Errorf("%w (status %s)", ErrNotStartable, m.Status)
}

// Decide completes m with an externally determined winner, as used for byes
// and administrative results. It reports whether m changed; deciding an
// already completed match with the same winner is a no-op.
func Decide(m *models.Match, winnerID uuid.UUID) (bool, error) {
	if !m.HasParticipant(winnerID) {
		return false, ErrWinnerNotInMatch
	}
	if m.IsCompleted() {
		if m.WinnerID != nil && *m.WinnerID == winnerID {
			return false, nil
		}
		return false, ErrWinnerMismatch
	}
	if m.Participant1ID == nil || m.Participant2ID == nil {
		return false, ErrNotEnoughParticipants
	}
	m.Status = models.MatchStatusCompleted
	m.WinnerID = models.IDPtr(winnerID)
	return true, nil
}
