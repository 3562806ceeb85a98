package models

import (
	"time"

	"github.com/google/uuid"
)

// ByeName is the display name of synthetic bracket opponents.
const ByeName = "BYE"

type Participant struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Region       string     `json:"region"`
	TournamentID uuid.UUID  `json:"tournament_id"`
	GroupID      *uuid.UUID `json:"group_id,omitempty"`
	GroupPoints  int        `json:"group_points"`
	ElimPoints   int        `json:"elim_points"`
	Victories    int        `json:"victories"`
	TotalSets    int        `json:"total_sets"`
	Seed         *int       `json:"seed,omitempty"`
	IsBye        bool       `json:"is_bye"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TotalPoints is derived from both phases and is never persisted.
func (p *Participant) TotalPoints() int {
	return p.GroupPoints + p.ElimPoints
}

// StatsDelta is an increment applied to a participant's cumulative counters.
type StatsDelta struct {
	GroupPoints int
	ElimPoints  int
	Victories   int
	TotalSets   int
}

func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

func (d StatsDelta) Add(o StatsDelta) StatsDelta {
	return StatsDelta{
		GroupPoints: d.GroupPoints + o.GroupPoints,
		ElimPoints:  d.ElimPoints + o.ElimPoints,
		Victories:   d.Victories + o.Victories,
		TotalSets:   d.TotalSets + o.TotalSets,
	}
}

func (p *Participant) Apply(d StatsDelta) {
	p.GroupPoints += d.GroupPoints
	p.ElimPoints += d.ElimPoints
	p.Victories += d.Victories
	p.TotalSets += d.TotalSets
}
