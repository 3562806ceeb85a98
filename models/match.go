package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusOngoing   MatchStatus = "ongoing"
	MatchStatusCompleted MatchStatus = "completed"
)

type MatchStage string

const (
	StageGroup       MatchStage = "group"
	StageFinals      MatchStage = "finals"
	StageSemifinal   MatchStage = "semifinal"
	StageFinal       MatchStage = "final"
	StageConsolation MatchStage = "consolation"
)

// IsBracket reports whether the stage belongs to the elimination tree (consolation excluded).
func (s MatchStage) IsBracket() bool {
	return s == StageFinals || s == StageSemifinal || s == StageFinal
}

// Set is one scoring unit of a match; sets are append-only.
type Set struct {
	Number             int       `json:"number"`
	Participant1Points int       `json:"participant1_points"`
	Participant2Points int       `json:"participant2_points"`
	WinnerID           uuid.UUID `json:"winner_id"`
}

type Match struct {
	ID             uuid.UUID   `json:"id"`
	TournamentID   uuid.UUID   `json:"tournament_id"`
	GroupID        *uuid.UUID  `json:"group_id,omitempty"`
	Participant1ID *uuid.UUID  `json:"participant1_id,omitempty"`
	Participant2ID *uuid.UUID  `json:"participant2_id,omitempty"`
	Sets           []Set       `json:"sets"`
	Stage          MatchStage  `json:"stage"`
	Status         MatchStatus `json:"status"`
	WinnerID       *uuid.UUID  `json:"winner_id,omitempty"`

	Round             int        `json:"round"`
	OrderInRound      int        `json:"order_in_round"`
	PreviousMatch1ID  *uuid.UUID `json:"previous_match1_id,omitempty"`
	PreviousMatch2ID  *uuid.UUID `json:"previous_match2_id,omitempty"`
	NextMatchID       *uuid.UUID `json:"next_match_id,omitempty"`
	IsThirdPlaceMatch bool       `json:"is_third_place_match"`

	CreatedAt time.Time `json:"created_at"`
}

// Participants returns the filled slots in slot order.
func (m *Match) Participants() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if m.Participant1ID != nil {
		ids = append(ids, *m.Participant1ID)
	}
	if m.Participant2ID != nil {
		ids = append(ids, *m.Participant2ID)
	}
	return ids
}

func (m *Match) HasParticipant(id uuid.UUID) bool {
	for _, pid := range m.Participants() {
		if pid == id {
			return true
		}
	}
	return false
}

// PreviousMatches returns the feeding matches in slot order.
func (m *Match) PreviousMatches() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if m.PreviousMatch1ID != nil {
		ids = append(ids, *m.PreviousMatch1ID)
	}
	if m.PreviousMatch2ID != nil {
		ids = append(ids, *m.PreviousMatch2ID)
	}
	return ids
}

// SlotFor returns the slot (0 or 1) fed by the given previous match, or -1.
func (m *Match) SlotFor(previousID uuid.UUID) int {
	switch {
	case m.PreviousMatch1ID != nil && *m.PreviousMatch1ID == previousID:
		return 0
	case m.PreviousMatch2ID != nil && *m.PreviousMatch2ID == previousID:
		return 1
	}
	return -1
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchStatusCompleted
}

// Opponent returns the other filled participant, if any.
func (m *Match) Opponent(id uuid.UUID) *uuid.UUID {
	for _, pid := range m.Participants() {
		if pid != id {
			other := pid
			return &other
		}
	}
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (m *Match) Clone() *Match {
	c := *m
	if m.Sets != nil {
		c.Sets = append([]Set(nil), m.Sets...)
	}
	c.GroupID = cloneID(m.GroupID)
	c.Participant1ID = cloneID(m.Participant1ID)
	c.Participant2ID = cloneID(m.Participant2ID)
	c.WinnerID = cloneID(m.WinnerID)
	c.PreviousMatch1ID = cloneID(m.PreviousMatch1ID)
	c.PreviousMatch2ID = cloneID(m.PreviousMatch2ID)
	c.NextMatchID = cloneID(m.NextMatchID)
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// IDPtr returns a pointer to a copy of id.
func IDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
