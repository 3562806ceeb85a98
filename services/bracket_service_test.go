package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/progression"
	"github.com/Dosada05/tournament-engine/realtime"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourPlayerFinals plays both groups of a 2x2 tournament and initializes a
// four-entrant bracket: ps[0] v ps[3] and ps[1] v ps[2] in the semifinals.
func fourPlayerFinals(t *testing.T, f *fixture) (*models.Tournament, []*models.Participant, *BracketView) {
	t.Helper()
	tour, ps := f.setup(t, 2, 4, 2, 4)
	f.playGroup(t, ps[0], ps[2])
	f.playGroup(t, ps[1], ps[3])
	view, err := f.brackets.InitializeFinals(f.ctx, tour.ID)
	require.NoError(t, err)
	return tour, ps, view
}

func TestInitializeFinalsRequiresFinishedGroups(t *testing.T) {
	f := newFixture(t)
	tour, ps := f.setup(t, 2, 4, 2, 4)
	f.playGroup(t, ps[0], ps[2])

	_, err := f.brackets.InitializeFinals(f.ctx, tour.ID)
	assert.True(t, errors.Is(err, ErrGroupStageNotFinished))
	assert.True(t, errors.Is(err, apperr.ErrState))

	_, err = f.brackets.GetBracket(f.ctx, tour.ID)
	assert.True(t, errors.Is(err, ErrBracketNotFound))
}

func TestInitializeFinals(t *testing.T) {
	f := newFixture(t)
	tour, ps, view := fourPlayerFinals(t, f)

	assert.Equal(t, models.StatusFinals, view.Status)
	assert.Equal(t, models.StatusFinals, f.tournament(t, tour.ID).Status)
	require.Equal(t, 2, view.TotalRounds)
	require.Len(t, view.Rounds, 2)
	assert.Equal(t, models.StageSemifinal, view.Rounds[0].Stage)
	assert.Equal(t, models.StageFinal, view.Rounds[1].Stage)
	require.NotNil(t, view.Consolation)
	assert.True(t, view.Consolation.IsThirdPlaceMatch)
	assert.Equal(t, brackets.ConsolationRound(2), view.Consolation.Round)

	semi1, semi2 := view.Rounds[0].Matches[0], view.Rounds[0].Matches[1]
	assert.Equal(t, ps[0].ID, semi1.Participant1.ID)
	assert.Equal(t, ps[3].ID, semi1.Participant2.ID)
	assert.Equal(t, ps[1].ID, semi2.Participant1.ID)
	assert.Equal(t, ps[2].ID, semi2.Participant2.ID)
	assert.Equal(t, models.MatchStatusScheduled, semi1.Status)
	assert.Equal(t, models.MatchStatusPending, view.Final().Status)

	for seed, p := range []*models.Participant{ps[0], ps[1], ps[2], ps[3]} {
		stored := f.participant(t, p.ID)
		require.NotNil(t, stored.Seed)
		assert.Equal(t, seed+1, *stored.Seed)
	}

	again, err := f.brackets.GetBracket(f.ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, semi1.ID, again.Rounds[0].Matches[0].ID)
	assert.Equal(t, view.Consolation.ID, again.Consolation.ID)

	_, err = f.brackets.InitializeFinals(f.ctx, tour.ID)
	assert.True(t, errors.Is(err, ErrBracketExists))
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	f.flush(t)
	assert.Contains(t, f.publisher.types(), realtime.EventBracketInitialized)
}

func TestTournamentRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	tour, ps, view := fourPlayerFinals(t, f)
	semi1, semi2 := view.Rounds[0].Matches[0], view.Rounds[0].Matches[1]
	finalID, consolationID := view.Final().ID, view.Consolation.ID

	started, err := f.matches.StartBracketMatch(f.ctx, semi1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusOngoing, started.Status)
	_, err = f.matches.StartBracketMatch(f.ctx, finalID)
	assert.True(t, errors.Is(err, progression.ErrNotEnoughParticipants))

	res := f.playBracket(t, semi1.ID, true)
	require.NotNil(t, res.Advancement)
	assert.Equal(t, ps[0].ID, res.Advancement.WinnerID)
	require.NotNil(t, res.Advancement.Next)
	assert.Equal(t, ps[0].ID, *res.Advancement.Next.Participant1ID)
	assert.Equal(t, models.MatchStatusPending, res.Advancement.Next.Status)
	require.NotNil(t, res.Advancement.Consolation)
	assert.Equal(t, ps[3].ID, *res.Advancement.Consolation.Participant1ID)

	res = f.playBracket(t, semi2.ID, false)
	final := f.match(t, finalID)
	assert.Equal(t, models.MatchStatusScheduled, final.Status)
	assert.Equal(t, ps[2].ID, *final.Participant2ID)
	consolation := f.match(t, consolationID)
	assert.Equal(t, models.MatchStatusScheduled, consolation.Status)
	assert.Equal(t, ps[1].ID, *consolation.Participant2ID)
	assert.Equal(t, models.StatusFinal, f.tournament(t, tour.ID).Status)

	podium, err := f.brackets.GetPodium(f.ctx, tour.ID)
	require.NoError(t, err)
	assert.Nil(t, podium.Champion)
	assert.False(t, podium.Completed)

	f.playBracket(t, consolationID, true)
	assert.False(t, f.tournament(t, tour.ID).IsCompleted(), "consolation does not end the tournament")

	for i, in := range []RecordSetInput{{11, 7}, {5, 11}, {11, 9}} {
		res, err = f.matches.RecordBracketSet(f.ctx, finalID, in)
		require.NoError(t, err)
		assert.Equal(t, i == 2, res.Completed)
	}
	require.NotNil(t, res.Advancement)
	assert.True(t, res.Advancement.TournamentCompleted)

	done := f.tournament(t, tour.ID)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.WinnerID)
	assert.Equal(t, ps[0].ID, *done.WinnerID)

	champion := f.participant(t, ps[0].ID)
	assert.Equal(t, 3, champion.Victories)
	assert.Equal(t, 22, champion.GroupPoints)
	assert.Equal(t, 22+27, champion.ElimPoints)

	podium, err = f.brackets.GetPodium(f.ctx, tour.ID)
	require.NoError(t, err)
	assert.True(t, podium.Completed)
	assert.Equal(t, ps[0].ID, podium.Champion.ID)
	assert.Equal(t, ps[2].ID, podium.RunnerUp.ID)
	assert.Equal(t, ps[3].ID, podium.Third.ID)
	assert.Equal(t, ps[1].ID, podium.Fourth.ID)

	obj, ok := f.uploader.Get(ArchiveKey(DefaultArchivePrefix, tour.ID))
	require.True(t, ok, "results are archived after completion")
	assert.Equal(t, "application/json", obj.ContentType)
	var archived ResultsSnapshot
	require.NoError(t, json.Unmarshal(obj.Body, &archived))
	assert.Equal(t, ps[0].ID, archived.Podium.Champion.ID)
	assert.Equal(t, tour.ID, archived.Tournament.ID)

	f.flush(t)
	assert.Contains(t, f.publisher.types(), realtime.EventTournamentCompleted)
	assert.Equal(t, 1.0, f.counter(t, "tournament_tournaments_completed_total"))
	assert.Equal(t, 2.0, f.counter(t, "tournament_bracket_advancements_total"))

	_, err = f.matches.RecordBracketSet(f.ctx, finalID, RecordSetInput{Participant1Points: 11, Participant2Points: 0})
	assert.True(t, errors.Is(err, progression.ErrMatchCompleted))

	// the next tournament may start once this one is completed
	_, err = f.tournaments.CreateTournament(f.ctx, CreateTournamentInput{Name: "Autumn Cup", NumberOfGroups: 2, MaxParticipantsPerGroup: 4})
	require.NoError(t, err)
}

func TestFinalWithPendingMatchesAborts(t *testing.T) {
	f := newFixture(t)
	tour, ps, view := fourPlayerFinals(t, f)

	final := f.match(t, view.Final().ID)
	final.Participant1ID = models.IDPtr(ps[0].ID)
	final.Participant2ID = models.IDPtr(ps[1].ID)
	final.Status = models.MatchStatusScheduled
	require.NoError(t, f.store.Matches.UpdateState(f.ctx, nil, final))

	_, err := f.matches.RecordBracketSet(f.ctx, final.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 1})
	require.NoError(t, err)
	_, err = f.matches.RecordBracketSet(f.ctx, final.ID, RecordSetInput{Participant1Points: 11, Participant2Points: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPendingMatches))
	assert.True(t, errors.Is(err, apperr.ErrState))
	count, ok := IsPendingMatches(err)
	require.True(t, ok)
	assert.Equal(t, 2, count)

	// the whole attempt is rolled back
	stored := f.match(t, final.ID)
	assert.Len(t, stored.Sets, 1)
	assert.Equal(t, models.MatchStatusOngoing, stored.Status)
	assert.Nil(t, stored.WinnerID)
	assert.Equal(t, 1, f.participant(t, ps[0].ID).Victories)
	assert.False(t, f.tournament(t, tour.ID).IsCompleted())
	assert.Empty(t, f.uploader.Keys())
}

func TestByesAndWalkovers(t *testing.T) {
	f := newFixture(t)
	tour, ps := f.setup(t, 5, 2, 1, 10)
	for i := 0; i < 5; i++ {
		f.playGroup(t, ps[i], ps[i+5])
	}
	view, err := f.brackets.InitializeFinals(f.ctx, tour.ID)
	require.NoError(t, err)
	require.Equal(t, 3, view.TotalRounds)
	assert.Equal(t, models.StageFinals, view.Rounds[0].Stage)

	first := view.Rounds[0].Matches
	require.Len(t, first, 4)
	byes := 0
	for _, m := range first {
		if m.Participant2 != nil && m.Participant2.IsBye {
			byes++
			assert.Equal(t, models.MatchStatusCompleted, m.Status)
			assert.Equal(t, m.Participant1.ID, *m.WinnerID)
		}
	}
	assert.Equal(t, 3, byes)

	byeMatch, played := first[0], first[1]
	assert.Equal(t, ps[0].ID, byeMatch.Participant1.ID)
	assert.Equal(t, ps[3].ID, played.Participant1.ID)
	assert.Equal(t, ps[4].ID, played.Participant2.ID)
	semi1, semi2 := view.Rounds[1].Matches[0], view.Rounds[1].Matches[1]
	assert.Equal(t, models.MatchStatusPending, semi1.Status)
	assert.Equal(t, models.MatchStatusScheduled, semi2.Status)
	// byes already made a semifinal playable
	assert.Equal(t, models.StatusSemifinal, view.Status)
	assert.Equal(t, models.StatusSemifinal, f.tournament(t, tour.ID).Status)

	// a bye always resolves to the seeded participant and is never credited
	res, err := f.matches.AdvanceBracketMatch(f.ctx, tour.ID, byeMatch.ID, models.IDPtr(byeMatch.Participant2.ID))
	require.NoError(t, err)
	assert.False(t, res.Decided)
	assert.Equal(t, ps[0].ID, res.Advancement.WinnerID)
	assert.Equal(t, 1, f.participant(t, ps[0].ID).Victories)

	_, err = f.matches.AdvanceBracketMatch(f.ctx, tour.ID, played.ID, nil)
	assert.True(t, errors.Is(err, brackets.ErrWinnerRequired))
	_, err = f.matches.AdvanceBracketMatch(f.ctx, tour.ID, played.ID, models.IDPtr(ps[0].ID))
	assert.True(t, errors.Is(err, progression.ErrWinnerNotInMatch))
	_, err = f.matches.AdvanceBracketMatch(f.ctx, uuid.New(), played.ID, models.IDPtr(ps[4].ID))
	assert.True(t, errors.Is(err, ErrMatchNotInTournament))

	res, err = f.matches.AdvanceBracketMatch(f.ctx, tour.ID, played.ID, models.IDPtr(ps[4].ID))
	require.NoError(t, err)
	assert.True(t, res.Decided)
	require.NotNil(t, res.Advancement.Next)
	assert.Equal(t, semi1.ID, res.Advancement.Next.ID)
	assert.Equal(t, models.MatchStatusScheduled, res.Advancement.Next.Status)
	assert.Equal(t, ps[4].ID, *res.Advancement.Next.Participant2ID)
	assert.Equal(t, 2, f.participant(t, ps[4].ID).Victories, "a walkover counts as a won match")
	assert.Equal(t, models.StatusSemifinal, f.tournament(t, tour.ID).Status)

	// repeating the advancement changes nothing
	res, err = f.matches.AdvanceBracketMatch(f.ctx, tour.ID, played.ID, models.IDPtr(ps[4].ID))
	require.NoError(t, err)
	assert.False(t, res.Decided)
	assert.Nil(t, res.Advancement.Next)
	assert.Equal(t, 2, f.participant(t, ps[4].ID).Victories)
	next := f.match(t, semi1.ID)
	assert.Equal(t, []uuid.UUID{ps[0].ID, ps[4].ID}, next.Participants())

	_, err = f.matches.AdvanceBracketMatch(f.ctx, tour.ID, played.ID, models.IDPtr(ps[3].ID))
	assert.True(t, errors.Is(err, progression.ErrWinnerMismatch))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}
