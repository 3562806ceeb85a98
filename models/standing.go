package models

import "github.com/google/uuid"

// Standing is one ranked row of a group table.
type Standing struct {
	Position      int       `json:"position"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
	Region        string    `json:"region"`
	Victories     int       `json:"victories"`
	TotalSets     int       `json:"total_sets"`
	GroupPoints   int       `json:"group_points"`
	TotalPoints   int       `json:"total_points"`
}

// GroupStandings is a group table plus its round-robin completion state.
type GroupStandings struct {
	GroupID           uuid.UUID  `json:"group_id"`
	Name              string     `json:"name"`
	TournamentID      uuid.UUID  `json:"tournament_id"`
	Max               int        `json:"max"`
	Participants      []Standing `json:"participants"`
	CompletedPairings int        `json:"completed_pairings"`
	RequiredPairings  int        `json:"required_pairings"`
	GroupStageEnded   bool       `json:"group_stage_ended"`
}
