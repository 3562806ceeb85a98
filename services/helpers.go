package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

// --- Общие хелперы ---

// ParseID parses a path or body identifier; what names it in the error.
func ParseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q", ErrInvalidID, what, raw)
	}
	return id, nil
}

// isValidStatusTransition allows moving forward only. completed is reached
// through the final, never set by hand.
func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	if current == models.StatusCompleted || next == models.StatusCompleted {
		return false
	}
	return current.Before(next)
}

// stageStatus is the tournament status that a bracket stage implies.
var stageStatus = map[models.MatchStage]models.TournamentStatus{
	models.StageFinals:    models.StatusFinals,
	models.StageSemifinal: models.StatusSemifinal,
	models.StageFinal:     models.StatusFinal,
}

// builtStatus is the status a freshly built bracket implies. A later-round
// match already scheduled was filled by byes and moves the tournament on as
// an advancement would.
func builtStatus(matches []*models.Match) models.TournamentStatus {
	status := models.StatusFinals
	for _, m := range matches {
		if m.Round <= 1 || m.Status != models.MatchStatusScheduled {
			continue
		}
		if target, ok := stageStatus[m.Stage]; ok && status.Before(target) {
			status = target
		}
	}
	return status
}

// detached keeps values of ctx but survives its cancellation; used for work
// that runs after a commit.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// --- Хелперы для преобразования моделей в View ---

type ParticipantView struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Region      string     `json:"region,omitempty"`
	GroupID     *uuid.UUID `json:"group_id,omitempty"`
	GroupPoints int        `json:"group_points"`
	ElimPoints  int        `json:"elim_points"`
	TotalPoints int        `json:"total_points"`
	Victories   int        `json:"victories"`
	TotalSets   int        `json:"total_sets"`
	Seed        *int       `json:"seed,omitempty"`
	IsBye       bool       `json:"is_bye"`
}

type MatchView struct {
	*models.Match
	Participant1 *ParticipantView `json:"participant1,omitempty"`
	Participant2 *ParticipantView `json:"participant2,omitempty"`
}

func participantToView(p *models.Participant) ParticipantView {
	return ParticipantView{
		ID:          p.ID,
		Name:        p.Name,
		Region:      p.Region,
		GroupID:     p.GroupID,
		GroupPoints: p.GroupPoints,
		ElimPoints:  p.ElimPoints,
		TotalPoints: p.TotalPoints(),
		Victories:   p.Victories,
		TotalSets:   p.TotalSets,
		Seed:        p.Seed,
		IsBye:       p.IsBye,
	}
}

func participantViews(participants []*models.Participant) map[uuid.UUID]ParticipantView {
	views := make(map[uuid.UUID]ParticipantView, len(participants))
	for _, p := range participants {
		views[p.ID] = participantToView(p)
	}
	return views
}

func toMatchView(m *models.Match, participants map[uuid.UUID]ParticipantView) MatchView {
	mv := MatchView{Match: m}
	if m.Participant1ID != nil {
		if pv, ok := participants[*m.Participant1ID]; ok {
			mv.Participant1 = &pv
		}
	}
	if m.Participant2ID != nil {
		if pv, ok := participants[*m.Participant2ID]; ok {
			mv.Participant2 = &pv
		}
	}
	return mv
}

func byeSet(participants map[uuid.UUID]*models.Participant) func(uuid.UUID) bool {
	return func(id uuid.UUID) bool {
		p, ok := participants[id]
		return ok && p.IsBye
	}
}
