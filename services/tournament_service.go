package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type CreateTournamentInput struct {
	Name                    string `json:"name"`
	NumberOfGroups          int    `json:"number_of_groups"`
	MaxParticipantsPerGroup int    `json:"max_participants_per_group"`
	QualifiersPerGroup      int    `json:"qualifiers_per_group"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetCurrentTournament(ctx context.Context) (*models.Tournament, error)
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	UpdateTournamentStatus(ctx context.Context, id uuid.UUID, status models.TournamentStatus) (*models.Tournament, error)
	CreateGroups(ctx context.Context, tournamentID uuid.UUID) ([]*models.Group, error)
	// ListGroups returns every group table in name order.
	ListGroups(ctx context.Context, tournamentID uuid.UUID) ([]models.GroupStandings, error)
}

type tournamentService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewTournamentService(store repositories.Store, logger *slog.Logger) TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{store: store, logger: logger}
}

func validateTournamentInput(input *CreateTournamentInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return ErrTournamentNameRequired
	}
	if input.NumberOfGroups <= 0 || input.MaxParticipantsPerGroup <= 0 {
		return ErrTournamentInvalidCapacity
	}
	if input.QualifiersPerGroup == 0 {
		input.QualifiersPerGroup = 1
	}
	if input.QualifiersPerGroup < 0 || input.QualifiersPerGroup > input.MaxParticipantsPerGroup {
		return ErrInvalidQualifiers
	}
	if input.NumberOfGroups*input.QualifiersPerGroup < 2 {
		return fmt.Errorf("%w: the bracket needs at least two qualifiers", ErrInvalidQualifiers)
	}
	return nil
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateTournamentInput(&input); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		ID:                      uuid.New(),
		Name:                    input.Name,
		NumberOfGroups:          input.NumberOfGroups,
		MaxParticipantsPerGroup: input.MaxParticipantsPerGroup,
		QualifiersPerGroup:      input.QualifiersPerGroup,
		Status:                  models.StatusCreated,
	}
	if err := s.store.Tournaments.Create(ctx, nil, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament_id", t.ID.String()),
		slog.String("name", t.Name),
		slog.Int("groups", t.NumberOfGroups))
	return t, nil
}

func (s *tournamentService) GetCurrentTournament(ctx context.Context) (*models.Tournament, error) {
	return s.store.Tournaments.GetCurrent(ctx, nil)
}

func (s *tournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	return s.store.Tournaments.GetByID(ctx, nil, id)
}

func (s *tournamentService) UpdateTournamentStatus(ctx context.Context, id uuid.UUID, status models.TournamentStatus) (*models.Tournament, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidStatus, status)
	}

	var updated *models.Tournament
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		t, err := s.store.Tournaments.GetByIDForUpdate(ctx, exec, id)
		if err != nil {
			return err
		}
		if !isValidStatusTransition(t.Status, status) {
			return fmt.Errorf("%w: from %s to %s", ErrTournamentInvalidStatusTransition, t.Status, status)
		}
		if t.Status != status {
			if err := s.store.Tournaments.UpdateStatus(ctx, exec, id, status); err != nil {
				return err
			}
			t.Status = status
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *tournamentService) CreateGroups(ctx context.Context, tournamentID uuid.UUID) ([]*models.Group, error) {
	var created []*models.Group
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		created = nil
		t, err := s.store.Tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.IsCompleted() {
			return ErrTournamentCompleted
		}
		if len(t.GroupIDs) > 0 {
			return ErrGroupsAlreadyCreated
		}
		if !isValidStatusTransition(t.Status, models.StatusGroup) {
			return fmt.Errorf("%w: groups cannot be created in status %s", ErrTournamentInvalidStatusTransition, t.Status)
		}

		labels := groups.Labels(t.NumberOfGroups)
		batch := make([]*models.Group, len(labels))
		for i, name := range labels {
			batch[i] = &models.Group{
				ID:             uuid.New(),
				TournamentID:   t.ID,
				Name:           name,
				Position:       i + 1,
				Max:            t.MaxParticipantsPerGroup,
				ParticipantIDs: []uuid.UUID{},
				MatchIDs:       []uuid.UUID{},
			}
		}
		if err := s.store.Groups.CreateBatch(ctx, exec, batch); err != nil {
			return err
		}
		if t.Status != models.StatusGroup {
			if err := s.store.Tournaments.UpdateStatus(ctx, exec, t.ID, models.StatusGroup); err != nil {
				return err
			}
		}
		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "groups created",
		slog.String("tournament_id", tournamentID.String()),
		slog.Int("count", len(created)))
	return created, nil
}

func (s *tournamentService) ListGroups(ctx context.Context, tournamentID uuid.UUID) ([]models.GroupStandings, error) {
	if _, err := s.store.Tournaments.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, err
	}
	gs, err := s.store.Groups.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}

	tables := make([]models.GroupStandings, len(gs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, group := range gs {
		g.Go(func() error {
			table, _, err := groupTable(gCtx, s.store, nil, group)
			if err != nil {
				return fmt.Errorf("group %s: %w", group.Name, err)
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(tables, func(i, j int) bool {
		return groups.LessLabel(tables[i].Name, tables[j].Name)
	})
	return tables, nil
}

// groupTable loads the members and the completed pairing count of group.
func groupTable(ctx context.Context, store repositories.Store, exec repositories.SQLExecutor, group *models.Group) (models.GroupStandings, []*models.Participant, error) {
	members, err := store.Participants.ListByGroup(ctx, exec, group.ID)
	if err != nil {
		return models.GroupStandings{}, nil, err
	}
	pairings, err := store.Matches.CountCompletedPairings(ctx, exec, group.ID)
	if err != nil {
		return models.GroupStandings{}, nil, err
	}
	return groups.Calculate(group, members, pairings), members, nil
}
