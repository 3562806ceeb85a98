package models

import "github.com/google/uuid"

type Group struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TournamentID uuid.UUID `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Position     int       `json:"position" db:"position"`
	Max          int       `json:"max" db:"max_participants"`

	ParticipantIDs []uuid.UUID `json:"participant_ids" db:"-"`
	MatchIDs       []uuid.UUID `json:"match_ids" db:"-"`
}

func (g *Group) Size() int {
	return len(g.ParticipantIDs)
}

func (g *Group) IsFull() bool {
	return len(g.ParticipantIDs) >= g.Max
}

func (g *Group) HasParticipant(id uuid.UUID) bool {
	for _, pid := range g.ParticipantIDs {
		if pid == id {
			return true
		}
	}
	return false
}
