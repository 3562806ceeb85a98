package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/progression"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartGroupMatchValidation(t *testing.T) {
	f := newFixture(t)
	tour, ps := f.setup(t, 2, 4, 1, 4)
	groupA := *ps[0].GroupID

	_, err := f.matches.StartGroupMatch(f.ctx, groupA, []uuid.UUID{ps[0].ID})
	assert.True(t, errors.Is(err, ErrInvalidMatchParticipants))
	_, err = f.matches.StartGroupMatch(f.ctx, groupA, []uuid.UUID{ps[0].ID, ps[0].ID})
	assert.True(t, errors.Is(err, ErrInvalidMatchParticipants))
	_, err = f.matches.StartGroupMatch(f.ctx, groupA, []uuid.UUID{ps[0].ID, ps[1].ID})
	assert.True(t, errors.Is(err, ErrInvalidMatchParticipants), "ps[1] plays in group B")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	m, err := f.matches.StartGroupMatch(f.ctx, groupA, []uuid.UUID{ps[0].ID, ps[2].ID})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusOngoing, m.Status)
	assert.Equal(t, models.StageGroup, m.Stage)
	assert.Equal(t, groupA, *m.GroupID)

	_, err = f.matches.StartGroupMatch(f.ctx, groupA, []uuid.UUID{ps[2].ID, ps[0].ID})
	assert.True(t, errors.Is(err, ErrMatchAlreadyOngoing))

	_, err = f.tournaments.UpdateTournamentStatus(f.ctx, tour.ID, models.StatusFinals)
	require.NoError(t, err)
	_, err = f.matches.StartGroupMatch(f.ctx, *ps[1].GroupID, []uuid.UUID{ps[1].ID, ps[3].ID})
	assert.True(t, errors.Is(err, ErrGroupStageClosed))
	assert.True(t, errors.Is(err, apperr.ErrState))
}

func TestRecordGroupSet(t *testing.T) {
	f := newFixture(t)
	_, ps := f.setup(t, 2, 4, 1, 4)
	m, err := f.matches.StartGroupMatch(f.ctx, *ps[0].GroupID, []uuid.UUID{ps[0].ID, ps[2].ID})
	require.NoError(t, err)
	f.flush(t)
	f.publisher.reset()

	_, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 11})
	assert.True(t, errors.Is(err, progression.ErrTiedSet))
	_, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: -1, Participant2Points: 11})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	res, err := f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 7})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, 1, res.Set.Number)

	res, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 5, Participant2Points: 11})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, models.MatchStatusOngoing, res.Match.Status)

	res, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 9})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, ps[0].ID, *res.Match.WinnerID)

	_, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 1})
	assert.True(t, errors.Is(err, progression.ErrMatchCompleted))
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	winner := f.participant(t, ps[0].ID)
	assert.Equal(t, 1, winner.Victories)
	assert.Equal(t, 2, winner.TotalSets)
	assert.Equal(t, 27, winner.GroupPoints)
	assert.Equal(t, 0, winner.ElimPoints)
	loser := f.participant(t, ps[2].ID)
	assert.Equal(t, 0, loser.Victories)
	assert.Equal(t, 1, loser.TotalSets)
	assert.Equal(t, 27, loser.GroupPoints)

	stored := f.match(t, m.ID)
	assert.Len(t, stored.Sets, 3)

	f.flush(t)
	types := f.publisher.types()
	require.Len(t, types, 3)
	for _, typ := range types {
		assert.Equal(t, realtime.EventGroupUpdated, typ)
	}
	last := f.publisher.event(2).Payload.(realtime.GroupUpdate)
	assert.Equal(t, *ps[0].GroupID, last.GroupID)
	require.NotNil(t, last.Match)
	assert.Equal(t, models.MatchStatusCompleted, last.Match.Status)
	assert.Equal(t, ps[0].ID, last.Participants[0].ParticipantID)

	assert.Equal(t, 3.0, f.counter(t, "tournament_sets_recorded_total"))
	assert.Equal(t, 1.0, f.counter(t, "tournament_matches_completed_total"))
}

func TestRecordSetWrongStage(t *testing.T) {
	f := newFixture(t)
	_, ps := f.setup(t, 2, 4, 1, 4)
	m, err := f.matches.StartGroupMatch(f.ctx, *ps[0].GroupID, []uuid.UUID{ps[0].ID, ps[2].ID})
	require.NoError(t, err)

	_, err = f.matches.RecordBracketSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 3})
	assert.True(t, errors.Is(err, ErrWrongMatchStage))

	_, err = f.matches.RecordGroupSet(f.ctx, uuid.New(), RecordSetInput{Participant1Points: 11, Participant2Points: 3})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestNotificationFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	_, ps := f.setup(t, 2, 4, 1, 4)
	f.flush(t)
	f.publisher.fail(errors.New("hub is down"))

	m, err := f.matches.StartGroupMatch(f.ctx, *ps[0].GroupID, []uuid.UUID{ps[0].ID, ps[2].ID})
	require.NoError(t, err)
	_, err = f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 3})
	require.NoError(t, err)

	assert.Len(t, f.match(t, m.ID).Sets, 1)
	f.flush(t)
	assert.Equal(t, 2.0, f.counter(t, "tournament_notification_failures_total"))
}

func TestSlowPublisherDoesNotDelayRequests(t *testing.T) {
	f := newFixture(t)
	_, ps := f.setup(t, 2, 4, 1, 4)
	f.flush(t)
	f.publisher.reset()
	release := f.publisher.hold()
	defer release()

	began := time.Now()
	m, err := f.matches.StartGroupMatch(f.ctx, *ps[0].GroupID, []uuid.UUID{ps[0].ID, ps[2].ID})
	require.NoError(t, err)
	res, err := f.matches.RecordGroupSet(f.ctx, m.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 3})
	require.NoError(t, err)
	assert.Less(t, time.Since(began), time.Second)
	assert.Equal(t, 1, res.Set.Number)
	assert.Empty(t, f.publisher.types())

	release()
	f.flush(t)
	assert.Equal(t, []realtime.EventType{realtime.EventGroupUpdated, realtime.EventGroupUpdated}, f.publisher.types())
}

func TestConcurrentCompletionIsAppliedOnce(t *testing.T) {
	f := newFixture(t)
	_, ps, view := fourPlayerFinals(t, f)
	semi := view.Rounds[0].Matches[0]
	_, err := f.matches.RecordBracketSet(f.ctx, semi.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 4})
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.matches.RecordBracketSet(f.ctx, semi.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 4})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && res.Completed:
				completed++
			case errors.Is(err, progression.ErrMatchCompleted) && errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected outcome: res=%+v err=%v", res, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, completed)
	assert.Equal(t, callers-1, conflicts)

	stored := f.match(t, semi.ID)
	assert.Len(t, stored.Sets, 2)
	assert.Equal(t, ps[0].ID, *stored.WinnerID)
	winner := f.participant(t, ps[0].ID)
	assert.Equal(t, 2, winner.Victories)
	assert.Equal(t, 4, winner.TotalSets)

	final := f.match(t, view.Final().ID)
	require.NotNil(t, final.Participant1ID)
	assert.Equal(t, ps[0].ID, *final.Participant1ID)
	assert.Equal(t, 1.0, f.counter(t, "tournament_bracket_advancements_total"))
}

func TestGetMatchDetails(t *testing.T) {
	f := newFixture(t)
	_, ps := f.setup(t, 2, 4, 1, 4)
	played := f.playGroup(t, ps[0], ps[2])

	details, err := f.matches.GetMatchDetails(f.ctx, played.ID)
	require.NoError(t, err)
	require.Len(t, details.Participants, 2)
	assert.Equal(t, ps[0].ID, details.Participants[0].ID)
	assert.Equal(t, 22, details.Participants[0].TotalPoints)
	require.NotNil(t, details.Group)
	assert.Equal(t, "A", details.Group.Name)
	assert.Equal(t, 4, details.Group.MaxParticipants)
	assert.Equal(t, 2, details.Group.CurrentParticipants)
	assert.Equal(t, 1, details.Group.TotalMatches)

	_, err = f.matches.GetMatchDetails(f.ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
