// Package realtime delivers tournament events to spectators. Publishing is
// best-effort: callers log failures and never roll back because of them.
package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

type EventType string

const (
	EventGroupUpdated        EventType = "group.updated"
	EventMatchUpdated        EventType = "bracket.match_updated"
	EventBracketInitialized  EventType = "bracket.initialized"
	EventTournamentCompleted EventType = "tournament.completed"
)

type Event struct {
	Type         EventType   `json:"type"`
	TournamentID uuid.UUID   `json:"tournament_id"`
	Payload      interface{} `json:"payload"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// MatchSnapshot is the public state of a match after an update.
type MatchSnapshot struct {
	ID             uuid.UUID          `json:"id"`
	Stage          models.MatchStage  `json:"stage"`
	Status         models.MatchStatus `json:"status"`
	Round          int                `json:"round,omitempty"`
	Participant1ID *uuid.UUID         `json:"participant1_id,omitempty"`
	Participant2ID *uuid.UUID         `json:"participant2_id,omitempty"`
	Sets           []models.Set       `json:"sets"`
	WinnerID       *uuid.UUID         `json:"winner_id,omitempty"`
}

func SnapshotOf(m *models.Match) MatchSnapshot {
	return MatchSnapshot{
		ID:             m.ID,
		Stage:          m.Stage,
		Status:         m.Status,
		Round:          m.Round,
		Participant1ID: m.Participant1ID,
		Participant2ID: m.Participant2ID,
		Sets:           m.Sets,
		WinnerID:       m.WinnerID,
	}
}

// GroupUpdate is the payload of EventGroupUpdated.
type GroupUpdate struct {
	GroupID      uuid.UUID         `json:"group_id"`
	Name         string            `json:"name"`
	TournamentID uuid.UUID         `json:"tournament_id"`
	Participants []models.Standing `json:"participants"`
	Match        *MatchSnapshot    `json:"match,omitempty"`
}

// MatchUpdate is the payload of EventMatchUpdated. Affected lists every
// bracket match changed by the same operation.
type MatchUpdate struct {
	Match    MatchSnapshot   `json:"match"`
	Affected []MatchSnapshot `json:"affected,omitempty"`
}

// CompletionUpdate is the payload of EventTournamentCompleted.
type CompletionUpdate struct {
	TournamentID uuid.UUID     `json:"tournament_id"`
	WinnerID     uuid.UUID     `json:"winner_id"`
	Final        MatchSnapshot `json:"final"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Room is the hub room of a tournament.
func Room(tournamentID uuid.UUID) string {
	return "tournament_" + tournamentID.String()
}
