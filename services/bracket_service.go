package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type RoundView struct {
	Number  int               `json:"number"`
	Stage   models.MatchStage `json:"stage"`
	Matches []MatchView       `json:"matches"`
}

type BracketView struct {
	TournamentID uuid.UUID               `json:"tournament_id"`
	Status       models.TournamentStatus `json:"status"`
	TotalRounds  int                     `json:"total_rounds"`
	Rounds       []RoundView             `json:"rounds"`
	Consolation  *MatchView              `json:"consolation,omitempty"`
}

// Final returns the single match of the last round.
func (v *BracketView) Final() *MatchView {
	if len(v.Rounds) == 0 || len(v.Rounds[len(v.Rounds)-1].Matches) == 0 {
		return nil
	}
	return &v.Rounds[len(v.Rounds)-1].Matches[0]
}

// Podium is the top four; places stay empty until their match is decided.
type Podium struct {
	TournamentID uuid.UUID        `json:"tournament_id"`
	Completed    bool             `json:"completed"`
	Champion     *ParticipantView `json:"champion,omitempty"`
	RunnerUp     *ParticipantView `json:"runner_up,omitempty"`
	Third        *ParticipantView `json:"third,omitempty"`
	Fourth       *ParticipantView `json:"fourth,omitempty"`
}

type BracketService interface {
	// InitializeFinals seeds the group qualifiers and persists the bracket.
	InitializeFinals(ctx context.Context, tournamentID uuid.UUID) (*BracketView, error)
	GetBracket(ctx context.Context, tournamentID uuid.UUID) (*BracketView, error)
	GetPodium(ctx context.Context, tournamentID uuid.UUID) (*Podium, error)
}

type bracketService struct {
	store    repositories.Store
	notifier *Notifier
	logger   *slog.Logger
}

func NewBracketService(store repositories.Store, notifier *Notifier, logger *slog.Logger) BracketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &bracketService{store: store, notifier: notifier, logger: logger}
}

func (s *bracketService) InitializeFinals(ctx context.Context, tournamentID uuid.UUID) (*BracketView, error) {
	var view *BracketView
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		view = nil
		t, err := s.store.Tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.IsCompleted() {
			return ErrTournamentCompleted
		}
		exists, err := s.store.Matches.HasBracket(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrBracketExists
		}

		gs, err := s.store.Groups.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if len(gs) == 0 {
			return ErrGroupsNotCreated
		}
		members := make([][]*models.Participant, len(gs))
		for i, g := range gs {
			table, ms, err := groupTable(ctx, s.store, exec, g)
			if err != nil {
				return err
			}
			if !table.GroupStageEnded {
				return fmt.Errorf("%w: group %s has %d of %d pairings played",
					ErrGroupStageNotFinished, g.Name, table.CompletedPairings, table.RequiredPairings)
			}
			members[i] = ms
		}

		entrants := groups.Qualifiers(members, t.QualifiersPerGroup)
		b, err := brackets.Build(t.ID, entrants)
		if err != nil {
			return err
		}

		everyone := make([]*models.Participant, 0, len(entrants)+len(b.Byes))
		for i, p := range entrants {
			seed := i + 1
			if err := s.store.Participants.SetSeed(ctx, exec, p.ID, seed); err != nil {
				return err
			}
			p.Seed = &seed
			everyone = append(everyone, p)
		}
		// Byes must exist before the matches that reference them.
		for _, bye := range b.Byes {
			if err := s.store.Participants.Create(ctx, exec, bye); err != nil {
				return err
			}
			everyone = append(everyone, bye)
		}
		matches := b.Matches()
		if err := s.store.Matches.CreateBracket(ctx, exec, matches); err != nil {
			return err
		}
		if status := builtStatus(matches); t.Status.Before(status) {
			if err := s.store.Tournaments.UpdateStatus(ctx, exec, t.ID, status); err != nil {
				return err
			}
			t.Status = status
		}

		view = buildBracketView(t, matches, participantViews(everyone))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "finals initialized",
		slog.String("tournament_id", tournamentID.String()),
		slog.Int("rounds", view.TotalRounds))
	s.notifier.Notify(ctx, realtime.Event{
		Type:         realtime.EventBracketInitialized,
		TournamentID: tournamentID,
		Payload:      view,
	})
	return view, nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID uuid.UUID) (*BracketView, error) {
	var (
		t            *models.Tournament
		matches      []*models.Match
		participants []*models.Participant
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.store.Tournaments.GetByID(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.store.Matches.ListBracket(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.store.Participants.ListByTournament(gCtx, nil, tournamentID, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrBracketNotFound
	}
	return buildBracketView(t, matches, participantViews(participants)), nil
}

func (s *bracketService) GetPodium(ctx context.Context, tournamentID uuid.UUID) (*Podium, error) {
	view, err := s.GetBracket(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return podiumOf(view), nil
}

// buildBracketView groups matches (round, position order) into labelled rounds.
func buildBracketView(t *models.Tournament, matches []*models.Match, participants map[uuid.UUID]ParticipantView) *BracketView {
	total := 0
	for _, m := range matches {
		if !m.IsThirdPlaceMatch {
			total = max(total, m.Round)
		}
	}

	view := &BracketView{
		TournamentID: t.ID,
		Status:       t.Status,
		TotalRounds:  total,
		Rounds:       make([]RoundView, total),
	}
	for i := range view.Rounds {
		view.Rounds[i] = RoundView{
			Number:  i + 1,
			Stage:   brackets.StageForRound(i+1, total),
			Matches: []MatchView{},
		}
	}
	for _, m := range matches {
		mv := toMatchView(m, participants)
		if m.IsThirdPlaceMatch {
			view.Consolation = &mv
			continue
		}
		if m.Round < 1 || m.Round > total {
			continue
		}
		view.Rounds[m.Round-1].Matches = append(view.Rounds[m.Round-1].Matches, mv)
	}
	return view
}

func podiumOf(view *BracketView) *Podium {
	podium := &Podium{
		TournamentID: view.TournamentID,
		Completed:    view.Status == models.StatusCompleted,
	}
	if final := view.Final(); final != nil && final.IsCompleted() {
		podium.Champion, podium.RunnerUp = placings(final)
	}
	if c := view.Consolation; c != nil && c.IsCompleted() {
		podium.Third, podium.Fourth = placings(c)
	}
	return podium
}

// placings returns the winner and the other participant of a decided match.
func placings(mv *MatchView) (winner, loser *ParticipantView) {
	if mv.WinnerID == nil {
		return nil, nil
	}
	for _, pv := range []*ParticipantView{mv.Participant1, mv.Participant2} {
		switch {
		case pv == nil || pv.IsBye:
		case pv.ID == *mv.WinnerID:
			winner = pv
		default:
			loser = pv
		}
	}
	return winner, loser
}
