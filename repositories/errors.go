package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound      = fmt.Errorf("%w: tournament not found", apperr.ErrNotFound)
	ErrActiveTournamentExists  = fmt.Errorf("%w: a tournament is already running", apperr.ErrConflict)
	ErrGroupNotFound           = fmt.Errorf("%w: group not found", apperr.ErrNotFound)
	ErrGroupNameConflict       = fmt.Errorf("%w: group name already used in this tournament", apperr.ErrConflict)
	ErrParticipantNotFound     = fmt.Errorf("%w: participant not found", apperr.ErrNotFound)
	ErrParticipantNameConflict = fmt.Errorf("%w: participant name already registered in this tournament", apperr.ErrConflict)
	ErrMatchNotFound           = fmt.Errorf("%w: match not found", apperr.ErrNotFound)
	ErrSetNumberConflict       = fmt.Errorf("%w: set number already recorded", apperr.ErrConflict)
	ErrInvalidReference        = fmt.Errorf("%w: referenced record does not exist", apperr.ErrValidation)
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var uniqueConstraints = map[string]error{
	"tournaments_single_active_idx":    ErrActiveTournamentExists,
	"groups_tournament_id_name_key":    ErrGroupNameConflict,
	"participants_tournament_name_idx": ErrParticipantNameConflict,
	"match_sets_pkey":                  ErrSetNumberConflict,
}

// mapError translates driver errors into the repository taxonomy. sql.ErrNoRows
// becomes notFound; anything unrecognised is a dependency failure.
func mapError(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	if apperr.Classified(err) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			if mapped, ok := uniqueConstraints[pqErr.Constraint]; ok {
				return mapped
			}
			return fmt.Errorf("%w: %s", apperr.ErrConflict, pqErr.Message)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w (%s)", ErrInvalidReference, pqErr.Constraint)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Dependency(op+": deadline exceeded", err)
	}
	return apperr.Dependency(op, err)
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization
// failure or deadlock, both of which are safe to retry.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}
