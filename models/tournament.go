package models

import (
	"time"

	"github.com/google/uuid"
)

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusCreated      TournamentStatus = "created"
	StatusRegistration TournamentStatus = "registration"
	StatusGroup        TournamentStatus = "group"
	StatusFinals       TournamentStatus = "finals"
	StatusSemifinal    TournamentStatus = "semifinal"
	StatusFinal        TournamentStatus = "final"
	StatusCompleted    TournamentStatus = "completed"
)

// tournamentStatusOrder fixes the one-directional lifecycle.
var tournamentStatusOrder = map[TournamentStatus]int{
	StatusCreated:      0,
	StatusRegistration: 1,
	StatusGroup:        2,
	StatusFinals:       3,
	StatusSemifinal:    4,
	StatusFinal:        5,
	StatusCompleted:    6,
}

// Valid reports whether s is one of the known statuses.
func (s TournamentStatus) Valid() bool {
	_, ok := tournamentStatusOrder[s]
	return ok
}

// Before reports whether s comes strictly before other in the lifecycle.
func (s TournamentStatus) Before(other TournamentStatus) bool {
	return tournamentStatusOrder[s] < tournamentStatusOrder[other]
}

// Tournament представляет турнир.
type Tournament struct {
	ID                      uuid.UUID        `json:"id" db:"id"`
	Name                    string           `json:"name" db:"name"`
	NumberOfGroups          int              `json:"number_of_groups" db:"number_of_groups"`
	MaxParticipantsPerGroup int              `json:"max_participants_per_group" db:"max_participants_per_group"`
	QualifiersPerGroup      int              `json:"qualifiers_per_group" db:"qualifiers_per_group"`
	Status                  TournamentStatus `json:"status" db:"status"`
	WinnerID                *uuid.UUID       `json:"winner_id,omitempty" db:"winner_participant_id"`
	CreatedAt               time.Time        `json:"created_at" db:"created_at"`

	// Заполняется сервисом, в таблице tournaments не хранится.
	GroupIDs []uuid.UUID `json:"group_ids" db:"-"`
}

func (t *Tournament) IsCompleted() bool {
	return t.Status == StatusCompleted
}
