package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/progression"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
)

type RecordSetInput struct {
	Participant1Points int `json:"participant1_points"`
	Participant2Points int `json:"participant2_points"`
}

// Advancement describes what a completed bracket match changed downstream.
type Advancement struct {
	WinnerID            uuid.UUID     `json:"winner_id"`
	LoserID             *uuid.UUID    `json:"loser_id,omitempty"`
	Next                *models.Match `json:"next_match,omitempty"`
	Consolation         *models.Match `json:"consolation,omitempty"`
	TournamentCompleted bool          `json:"tournament_completed"`
}

type SetResult struct {
	Match       *models.Match `json:"match"`
	Set         models.Set    `json:"set"`
	Completed   bool          `json:"completed"`
	Advancement *Advancement  `json:"advancement,omitempty"`
}

type AdvanceResult struct {
	Match *models.Match `json:"match"`
	// Decided is false when the match had already been completed.
	Decided     bool         `json:"decided"`
	Advancement *Advancement `json:"advancement"`
}

type GroupSummary struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	TotalMatches        int       `json:"total_matches"`
}

type MatchDetails struct {
	Match        *models.Match     `json:"match"`
	Participants []ParticipantView `json:"participants"`
	Group        *GroupSummary     `json:"group,omitempty"`
}

type MatchService interface {
	StartGroupMatch(ctx context.Context, groupID uuid.UUID, participantIDs []uuid.UUID) (*models.Match, error)
	StartBracketMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error)
	RecordGroupSet(ctx context.Context, matchID uuid.UUID, input RecordSetInput) (*SetResult, error)
	RecordBracketSet(ctx context.Context, matchID uuid.UUID, input RecordSetInput) (*SetResult, error)
	// AdvanceBracketMatch decides a bracket match administratively (or
	// re-runs advancement of a decided one) and moves the winner on.
	AdvanceBracketMatch(ctx context.Context, tournamentID, matchID uuid.UUID, winnerID *uuid.UUID) (*AdvanceResult, error)
	GetMatchDetails(ctx context.Context, matchID uuid.UUID) (*MatchDetails, error)
}

type matchService struct {
	store    repositories.Store
	notifier *Notifier
	archiver ResultsArchiver
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewMatchService wires the match workflow; a nil archiver disables results upload.
func NewMatchService(
	store repositories.Store,
	notifier *Notifier,
	archiver ResultsArchiver,
	rec *metrics.Recorder,
	logger *slog.Logger,
) MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		store:    store,
		notifier: notifier,
		archiver: archiver,
		metrics:  rec,
		logger:   logger,
	}
}

// effects collects what to do once the transaction has committed. It is
// rebuilt on every attempt.
type effects struct {
	events              []realtime.Event
	setStage            models.MatchStage
	completed           []models.MatchStage
	advanced            int
	completedTournament *uuid.UUID
}

func (s *matchService) StartGroupMatch(ctx context.Context, groupID uuid.UUID, participantIDs []uuid.UUID) (*models.Match, error) {
	if len(participantIDs) != 2 || participantIDs[0] == participantIDs[1] ||
		participantIDs[0] == uuid.Nil || participantIDs[1] == uuid.Nil {
		return nil, ErrInvalidMatchParticipants
	}

	var (
		created *models.Match
		fx      *effects
	)
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		created, fx = nil, &effects{}
		group, err := s.store.Groups.GetByID(ctx, exec, groupID)
		if err != nil {
			return err
		}
		t, err := s.store.Tournaments.GetByID(ctx, exec, group.TournamentID)
		if err != nil {
			return err
		}
		if t.Status != models.StatusGroup {
			return fmt.Errorf("%w (status %s)", ErrGroupStageClosed, t.Status)
		}
		for _, id := range participantIDs {
			if !group.HasParticipant(id) {
				return fmt.Errorf("%w: %s is not in group %s", ErrInvalidMatchParticipants, id, group.Name)
			}
		}

		existing, err := s.store.Matches.ListByGroup(ctx, exec, group.ID)
		if err != nil {
			return err
		}
		for _, m := range existing {
			if !m.IsCompleted() && m.HasParticipant(participantIDs[0]) && m.HasParticipant(participantIDs[1]) {
				return fmt.Errorf("%w (match %s)", ErrMatchAlreadyOngoing, m.ID)
			}
		}

		m := &models.Match{
			ID:             uuid.New(),
			TournamentID:   t.ID,
			GroupID:        models.IDPtr(group.ID),
			Participant1ID: models.IDPtr(participantIDs[0]),
			Participant2ID: models.IDPtr(participantIDs[1]),
			Sets:           []models.Set{},
			Stage:          models.StageGroup,
			Status:         models.MatchStatusOngoing,
		}
		if err := s.store.Matches.Create(ctx, exec, m); err != nil {
			return err
		}
		ev, err := s.groupEvent(ctx, exec, group, m)
		if err != nil {
			return err
		}
		fx.events = append(fx.events, ev)
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.finish(ctx, fx)
	return created, nil
}

func (s *matchService) StartBracketMatch(ctx context.Context, matchID uuid.UUID) (*models.Match, error) {
	var (
		started *models.Match
		fx      *effects
	)
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		started, fx = nil, &effects{}
		m, err := s.store.Matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if m.Stage == models.StageGroup {
			return fmt.Errorf("%w: group matches start ongoing", ErrWrongMatchStage)
		}
		before := m.Status
		if err := progression.Start(m); err != nil {
			return err
		}
		if m.Status != before {
			if err := s.store.Matches.UpdateState(ctx, exec, m); err != nil {
				return err
			}
			fx.events = append(fx.events, matchEvent(m, nil))
		}
		started = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.finish(ctx, fx)
	return started, nil
}

func (s *matchService) RecordGroupSet(ctx context.Context, matchID uuid.UUID, input RecordSetInput) (*SetResult, error) {
	return s.recordSet(ctx, matchID, input, false)
}

func (s *matchService) RecordBracketSet(ctx context.Context, matchID uuid.UUID, input RecordSetInput) (*SetResult, error) {
	return s.recordSet(ctx, matchID, input, true)
}

func (s *matchService) recordSet(ctx context.Context, matchID uuid.UUID, input RecordSetInput, bracket bool) (*SetResult, error) {
	if err := progression.ValidatePoints(input.Participant1Points, input.Participant2Points); err != nil {
		return nil, err
	}

	var (
		result *SetResult
		fx     *effects
	)
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		result, fx = nil, &effects{}
		m, err := s.store.Matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if bracket == (m.Stage == models.StageGroup) {
			return fmt.Errorf("%w (%s match)", ErrWrongMatchStage, m.Stage)
		}
		participants, err := s.lockParticipants(ctx, exec, m)
		if err != nil {
			return err
		}

		out, err := progression.RecordSet(m, input.Participant1Points, input.Participant2Points)
		if err != nil {
			return err
		}
		if err := s.store.Matches.AppendSet(ctx, exec, m.ID, out.Set); err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, exec, m, out.Deltas); err != nil {
			return err
		}
		if err := s.store.Matches.UpdateState(ctx, exec, m); err != nil {
			return err
		}

		fx.setStage = m.Stage
		result = &SetResult{Match: m, Set: out.Set, Completed: out.Completed}
		if out.Completed {
			fx.completed = append(fx.completed, m.Stage)
		}

		switch {
		case m.Stage == models.StageGroup:
			if m.GroupID == nil {
				return apperr.State("group match %s has no group", m.ID)
			}
			group, err := s.store.Groups.GetByID(ctx, exec, *m.GroupID)
			if err != nil {
				return err
			}
			ev, err := s.groupEvent(ctx, exec, group, m)
			if err != nil {
				return err
			}
			fx.events = append(fx.events, ev)
		case out.Completed:
			adv, err := s.propagate(ctx, exec, m, participants, true, fx)
			if err != nil {
				return err
			}
			result.Advancement = adv
		default:
			fx.events = append(fx.events, matchEvent(m, nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "set recorded",
		slog.String("match_id", matchID.String()),
		slog.Int("set", result.Set.Number),
		slog.Bool("completed", result.Completed))
	s.finish(ctx, fx)
	return result, nil
}

func (s *matchService) AdvanceBracketMatch(ctx context.Context, tournamentID, matchID uuid.UUID, winnerID *uuid.UUID) (*AdvanceResult, error) {
	var (
		result *AdvanceResult
		fx     *effects
	)
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		result, fx = nil, &effects{}
		m, err := s.store.Matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if m.TournamentID != tournamentID {
			return ErrMatchNotInTournament
		}
		if m.Stage == models.StageGroup {
			return fmt.Errorf("%w: group matches are not advanced", ErrWrongMatchStage)
		}
		participants, err := s.lockParticipants(ctx, exec, m)
		if err != nil {
			return err
		}
		isBye := byeSet(participants)

		winner, err := brackets.ResolveWinner(m, winnerID, isBye)
		if err != nil {
			return err
		}
		decided := false
		if !m.IsCompleted() {
			if decided, err = progression.Decide(m, winner); err != nil {
				return err
			}
			if err := s.store.Matches.UpdateState(ctx, exec, m); err != nil {
				return err
			}
			// A walkover still counts as a won match, a bye does not.
			if opp := m.Opponent(winner); opp != nil && !isBye(*opp) {
				if err := s.store.Participants.IncrementStats(ctx, exec, winner, models.StatsDelta{Victories: 1}); err != nil {
					return err
				}
			}
			fx.completed = append(fx.completed, m.Stage)
		}

		adv, err := s.propagate(ctx, exec, m, participants, decided, fx)
		if err != nil {
			return err
		}
		result = &AdvanceResult{Match: m, Decided: decided, Advancement: adv}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.finish(ctx, fx)
	return result, nil
}

func (s *matchService) GetMatchDetails(ctx context.Context, matchID uuid.UUID) (*MatchDetails, error) {
	m, err := s.store.Matches.GetByID(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	ids := m.Participants()
	byID, err := s.store.Participants.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	details := &MatchDetails{Match: m, Participants: make([]ParticipantView, 0, len(ids))}
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			details.Participants = append(details.Participants, participantToView(p))
		}
	}

	if m.GroupID != nil {
		group, err := s.store.Groups.GetByID(ctx, nil, *m.GroupID)
		if err != nil {
			return nil, err
		}
		matches, err := s.store.Matches.ListByGroup(ctx, nil, group.ID)
		if err != nil {
			return nil, err
		}
		details.Group = &GroupSummary{
			ID:                  group.ID,
			Name:                group.Name,
			MaxParticipants:     group.Max,
			CurrentParticipants: group.Size(),
			TotalMatches:        len(matches),
		}
	}
	return details, nil
}

// propagate runs bracket advancement for the completed match done. changed
// says whether done itself was modified by the caller, which decides whether
// an update event is due even when nothing downstream moved.
func (s *matchService) propagate(
	ctx context.Context,
	exec repositories.SQLExecutor,
	done *models.Match,
	participants map[uuid.UUID]*models.Participant,
	changed bool,
	fx *effects,
) (*Advancement, error) {
	var next, consolation *models.Match
	var err error
	if done.NextMatchID != nil {
		if next, err = s.store.Matches.GetByIDForUpdate(ctx, exec, *done.NextMatchID); err != nil {
			return nil, err
		}
	}
	if done.Stage == models.StageSemifinal {
		consolation, err = s.store.Matches.GetConsolationForUpdate(ctx, exec, done.TournamentID)
		if errors.Is(err, repositories.ErrMatchNotFound) {
			consolation, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
	}

	res, err := brackets.Advance(done, next, consolation, byeSet(participants))
	if err != nil {
		return nil, err
	}
	adv := &Advancement{WinnerID: res.WinnerID, LoserID: res.LoserID}

	var affected []*models.Match
	if res.NextChanged {
		if err := s.store.Matches.UpdateState(ctx, exec, next); err != nil {
			return nil, err
		}
		if next.Status == models.MatchStatusScheduled {
			if err := s.followStage(ctx, exec, done.TournamentID, next.Stage); err != nil {
				return nil, err
			}
		}
		adv.Next = next
		affected = append(affected, next)
		fx.advanced++
	}
	if res.ConsolationChanged {
		if err := s.store.Matches.UpdateState(ctx, exec, consolation); err != nil {
			return nil, err
		}
		adv.Consolation = consolation
		affected = append(affected, consolation)
	}
	if changed || len(affected) > 0 {
		fx.events = append(fx.events, matchEvent(done, affected))
	}

	if res.FinalDecided {
		if err := s.completeTournament(ctx, exec, done, res.WinnerID, fx); err != nil {
			return nil, err
		}
		adv.TournamentCompleted = true
	}
	return adv, nil
}

func (s *matchService) completeTournament(ctx context.Context, exec repositories.SQLExecutor, final *models.Match, winnerID uuid.UUID, fx *effects) error {
	t, err := s.store.Tournaments.GetByIDForUpdate(ctx, exec, final.TournamentID)
	if err != nil {
		return err
	}
	if t.IsCompleted() {
		return nil
	}
	pending, err := s.store.Matches.CountUnresolvedBracket(ctx, exec, t.ID, final.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return &PendingMatchesError{Count: pending}
	}
	if err := s.store.Tournaments.Complete(ctx, exec, t.ID, winnerID); err != nil {
		return err
	}
	fx.completedTournament = models.IDPtr(t.ID)
	fx.events = append(fx.events, realtime.Event{
		Type:         realtime.EventTournamentCompleted,
		TournamentID: t.ID,
		Payload: realtime.CompletionUpdate{
			TournamentID: t.ID,
			WinnerID:     winnerID,
			Final:        realtime.SnapshotOf(final),
		},
	})
	return nil
}

// followStage moves the tournament status forward to the stage of a match
// that has just become playable.
func (s *matchService) followStage(ctx context.Context, exec repositories.SQLExecutor, tournamentID uuid.UUID, stage models.MatchStage) error {
	target, ok := stageStatus[stage]
	if !ok {
		return nil
	}
	t, err := s.store.Tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
	if err != nil {
		return err
	}
	if !t.Status.Before(target) {
		return nil
	}
	return s.store.Tournaments.UpdateStatus(ctx, exec, tournamentID, target)
}

func (s *matchService) lockParticipants(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) (map[uuid.UUID]*models.Participant, error) {
	ids := m.Participants()
	if len(ids) == 0 {
		return map[uuid.UUID]*models.Participant{}, nil
	}
	return s.store.Participants.GetByIDsForUpdate(ctx, exec, ids)
}

// applyDeltas writes stat increments in slot order.
func (s *matchService) applyDeltas(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, deltas map[uuid.UUID]models.StatsDelta) error {
	for _, id := range m.Participants() {
		d, ok := deltas[id]
		if !ok || d.IsZero() {
			continue
		}
		if err := s.store.Participants.IncrementStats(ctx, exec, id, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *matchService) groupEvent(ctx context.Context, exec repositories.SQLExecutor, group *models.Group, m *models.Match) (realtime.Event, error) {
	table, _, err := groupTable(ctx, s.store, exec, group)
	if err != nil {
		return realtime.Event{}, err
	}
	snap := realtime.SnapshotOf(m)
	return realtime.Event{
		Type:         realtime.EventGroupUpdated,
		TournamentID: group.TournamentID,
		Payload: realtime.GroupUpdate{
			GroupID:      group.ID,
			Name:         group.Name,
			TournamentID: group.TournamentID,
			Participants: table.Participants,
			Match:        &snap,
		},
	}, nil
}

func matchEvent(m *models.Match, affected []*models.Match) realtime.Event {
	update := realtime.MatchUpdate{Match: realtime.SnapshotOf(m)}
	for _, a := range affected {
		update.Affected = append(update.Affected, realtime.SnapshotOf(a))
	}
	return realtime.Event{
		Type:         realtime.EventMatchUpdated,
		TournamentID: m.TournamentID,
		Payload:      update,
	}
}

func (s *matchService) finish(ctx context.Context, fx *effects) {
	if fx == nil {
		return
	}
	if fx.setStage != "" {
		s.metrics.SetRecorded(string(fx.setStage))
	}
	for _, stage := range fx.completed {
		s.metrics.MatchCompleted(string(stage))
	}
	for i := 0; i < fx.advanced; i++ {
		s.metrics.BracketAdvanced()
	}
	s.notifier.Notify(ctx, fx.events...)

	if fx.completedTournament == nil {
		return
	}
	id := *fx.completedTournament
	s.metrics.TournamentCompleted()
	s.logger.InfoContext(ctx, "tournament completed", slog.String("tournament_id", id.String()))
	if s.archiver == nil {
		return
	}
	archiveCtx, cancel := detached(ctx, DefaultArchiveTimeout)
	defer cancel()
	if res, err := s.archiver.Archive(archiveCtx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive tournament results",
			slog.String("tournament_id", id.String()),
			slog.Any("error", err))
	} else {
		s.logger.InfoContext(ctx, "tournament results archived",
			slog.String("tournament_id", id.String()),
			slog.String("key", res.Key),
			slog.String("location", res.Location))
	}
}
