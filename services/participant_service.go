package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/google/uuid"
)

type RegisterParticipantInput struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// ParticipantService инкапсулирует бизнес-логику для участников турниров.
type ParticipantService interface {
	RegisterParticipant(ctx context.Context, tournamentID uuid.UUID, input RegisterParticipantInput) (*models.Participant, error)
	// AvailableOpponents lists group members the participant has not met yet.
	AvailableOpponents(ctx context.Context, groupID, participantID uuid.UUID) ([]*models.Participant, error)
}

type participantService struct {
	store    repositories.Store
	notifier *Notifier
	metrics  *metrics.Recorder
	logger   *slog.Logger

	// balancer's random source is not safe for concurrent use
	mu       sync.Mutex
	balancer *groups.Balancer
}

func NewParticipantService(
	store repositories.Store,
	balancer *groups.Balancer,
	notifier *Notifier,
	rec *metrics.Recorder,
	logger *slog.Logger,
) ParticipantService {
	if balancer == nil {
		balancer = groups.NewBalancer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &participantService{
		store:    store,
		notifier: notifier,
		metrics:  rec,
		logger:   logger,
		balancer: balancer,
	}
}

func (s *participantService) pick(applicant groups.Applicant, loads []groups.GroupLoad) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balancer.Pick(applicant, loads)
}

func (s *participantService) RegisterParticipant(ctx context.Context, tournamentID uuid.UUID, input RegisterParticipantInput) (*models.Participant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrParticipantNameRequired
	}
	region := strings.TrimSpace(input.Region)

	var (
		created *models.Participant
		update  *realtime.GroupUpdate
	)
	err := s.store.Tx.InTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		created, update = nil, nil
		t, err := s.store.Tournaments.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if t.IsCompleted() {
			return ErrTournamentCompleted
		}
		if !t.Status.Before(models.StatusFinals) {
			return ErrRegistrationClosed
		}

		taken, err := s.store.Participants.ExistsByName(ctx, exec, t.ID, name)
		if err != nil {
			return err
		}
		if taken {
			return repositories.ErrParticipantNameConflict
		}

		gs, err := s.store.Groups.ListByTournament(ctx, exec, t.ID)
		if err != nil {
			return err
		}
		if len(gs) == 0 {
			return ErrGroupsNotCreated
		}
		loads := make([]groups.GroupLoad, len(gs))
		for i, g := range gs {
			members, err := s.store.Participants.ListByGroup(ctx, exec, g.ID)
			if err != nil {
				return err
			}
			loads[i] = groups.GroupLoad{Group: g, Members: members}
		}

		target, err := s.pick(groups.Applicant{Name: name, Region: region}, loads)
		if err != nil {
			return err
		}
		p := &models.Participant{
			ID:           uuid.New(),
			Name:         name,
			Region:       region,
			TournamentID: t.ID,
			GroupID:      models.IDPtr(target.ID),
		}
		if err := s.store.Participants.Create(ctx, exec, p); err != nil {
			return err
		}

		table, _, err := groupTable(ctx, s.store, exec, target)
		if err != nil {
			return err
		}
		created = p
		update = &realtime.GroupUpdate{
			GroupID:      table.GroupID,
			Name:         table.Name,
			TournamentID: table.TournamentID,
			Participants: table.Participants,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ParticipantRegistered()
	s.logger.InfoContext(ctx, "participant registered",
		slog.String("tournament_id", tournamentID.String()),
		slog.String("participant_id", created.ID.String()),
		slog.String("group", update.Name))
	s.notifier.Notify(ctx, realtime.Event{
		Type:         realtime.EventGroupUpdated,
		TournamentID: tournamentID,
		Payload:      update,
	})
	return created, nil
}

func (s *participantService) AvailableOpponents(ctx context.Context, groupID, participantID uuid.UUID) ([]*models.Participant, error) {
	group, err := s.store.Groups.GetByID(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasParticipant(participantID) {
		return nil, ErrParticipantNotInGroup
	}
	members, err := s.store.Participants.ListByGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	matches, err := s.store.Matches.ListByGroup(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}
	return groups.AvailableOpponents(participantID, members, matches), nil
}
