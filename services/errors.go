package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/apperr"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ошибки валидации входных данных
	ErrInvalidID                 = fmt.Errorf("%w: invalid identifier", apperr.ErrValidation)
	ErrTournamentNameRequired    = fmt.Errorf("%w: tournament name is required", apperr.ErrValidation)
	ErrTournamentInvalidCapacity = fmt.Errorf("%w: number of groups and group capacity must be positive", apperr.ErrValidation)
	ErrInvalidQualifiers         = fmt.Errorf("%w: qualifiers per group must be between 1 and the group capacity", apperr.ErrValidation)
	ErrTournamentInvalidStatus   = fmt.Errorf("%w: invalid tournament status provided", apperr.ErrValidation)
	ErrParticipantNameRequired   = fmt.Errorf("%w: participant name is required", apperr.ErrValidation)
	ErrInvalidMatchParticipants  = fmt.Errorf("%w: a match needs exactly two distinct participants of the group", apperr.ErrValidation)
	ErrWrongMatchStage           = fmt.Errorf("%w: match belongs to another stage", apperr.ErrValidation)

	// Ресурс не найден
	ErrParticipantNotInGroup = fmt.Errorf("%w: participant is not a member of the group", apperr.ErrNotFound)
	ErrMatchNotInTournament  = fmt.Errorf("%w: match does not belong to the tournament", apperr.ErrNotFound)
	ErrBracketNotFound       = fmt.Errorf("%w: bracket has not been initialized", apperr.ErrNotFound)

	// Ошибки конфликтов
	ErrGroupsAlreadyCreated = fmt.Errorf("%w: groups already exist for the tournament", apperr.ErrConflict)
	ErrBracketExists        = fmt.Errorf("%w: bracket already exists for the tournament", apperr.ErrConflict)
	ErrMatchAlreadyOngoing  = fmt.Errorf("%w: participants already have an unfinished match", apperr.ErrConflict)

	// Ошибки состояния турнира
	ErrTournamentInvalidStatusTransition = fmt.Errorf("%w: invalid tournament status transition", apperr.ErrState)
	ErrTournamentCompleted               = fmt.Errorf("%w: tournament is completed", apperr.ErrState)
	ErrGroupsNotCreated                  = fmt.Errorf("%w: tournament has no groups yet", apperr.ErrState)
	ErrRegistrationClosed                = fmt.Errorf("%w: registration is closed once the finals start", apperr.ErrState)
	ErrGroupStageClosed                  = fmt.Errorf("%w: tournament is not in the group stage", apperr.ErrState)
	ErrGroupStageNotFinished             = fmt.Errorf("%w: group stage is not finished", apperr.ErrState)
	ErrPendingMatches                    = fmt.Errorf("%w: pending matches", apperr.ErrState)
)

// PendingMatchesError is returned when the final completes while other
// bracket matches are still unresolved.
type PendingMatchesError struct {
	Count int
}

func (e *PendingMatchesError) Error() string {
	return fmt.Sprintf("%v: %d bracket match(es) still unresolved", ErrPendingMatches, e.Count)
}

func (e *PendingMatchesError) Unwrap() error {
	return ErrPendingMatches
}

// IsPendingMatches extracts the unresolved count from err.
func IsPendingMatches(err error) (int, bool) {
	var pending *PendingMatchesError
	if errors.As(err, &pending) {
		return pending.Count, true
	}
	return 0, false
}
