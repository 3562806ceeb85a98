package brackets_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/progression"
	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

func entrants(n int) []*models.Participant {
	ps := make([]*models.Participant, n)
	for i := range ps {
		ps[i] = &models.Participant{ID: uuid.New(), Name: fmt.Sprintf("seed-%d", i+1)}
	}
	return ps
}

func byID(b *brackets.Bracket) map[uuid.UUID]*models.Match {
	all := map[uuid.UUID]*models.Match{}
	for _, m := range b.Matches() {
		all[m.ID] = m
	}
	return all
}

func TestRounds(t *testing.T) {
	Convey("Round helpers", t, func() {
		So(brackets.NextPowerOfTwo(5), ShouldEqual, 8)
		So(brackets.NextPowerOfTwo(8), ShouldEqual, 8)
		So(brackets.NextPowerOfTwo(1), ShouldEqual, 1)
		So(brackets.TotalRounds(2), ShouldEqual, 1)
		So(brackets.TotalRounds(5), ShouldEqual, 3)
		So(brackets.TotalRounds(16), ShouldEqual, 4)
		So(brackets.SeedOrder(8), ShouldResemble, []int{1, 8, 4, 5, 2, 7, 3, 6})
		So(brackets.SeedOrder(4), ShouldResemble, []int{1, 4, 2, 3})

		So(brackets.StageForRound(3, 3), ShouldEqual, models.StageFinal)
		So(brackets.StageForRound(2, 3), ShouldEqual, models.StageSemifinal)
		So(brackets.StageForRound(1, 3), ShouldEqual, models.StageFinals)
		So(brackets.StageForRound(1, 1), ShouldEqual, models.StageFinal)
		So(brackets.ConsolationRound(3), ShouldEqual, 4)
	})
}

func TestBuild(t *testing.T) {
	Convey("Given five seeded entrants", t, func() {
		seeds := entrants(5)
		tid := uuid.New()
		b, err := brackets.Build(tid, seeds)
		So(err, ShouldBeNil)

		Convey("The bracket is sized to eight with three byes", func() {
			So(b.TotalRounds, ShouldEqual, 3)
			So(b.Rounds, ShouldHaveLength, 3)
			So(b.Rounds[0], ShouldHaveLength, 4)
			So(b.Rounds[1], ShouldHaveLength, 2)
			So(b.Rounds[2], ShouldHaveLength, 1)
			So(b.Byes, ShouldHaveLength, 3)
			for _, bye := range b.Byes {
				So(bye.IsBye, ShouldBeTrue)
				So(bye.Name, ShouldEqual, models.ByeName)
				So(bye.TournamentID, ShouldEqual, tid)
			}
		})

		Convey("Seeds one to three get pre-completed byes and four meets five", func() {
			byeWinners := map[uuid.UUID]bool{}
			var played *models.Match
			for _, m := range b.Rounds[0] {
				So(m.Stage, ShouldEqual, models.StageFinals)
				if m.IsCompleted() {
					So(b.IsBye(*m.Participant2ID), ShouldBeTrue)
					So(*m.WinnerID, ShouldEqual, *m.Participant1ID)
					byeWinners[*m.WinnerID] = true
					continue
				}
				played = m
			}
			So(byeWinners, ShouldHaveLength, 3)
			for _, p := range seeds[:3] {
				So(byeWinners[p.ID], ShouldBeTrue)
			}
			So(played, ShouldNotBeNil)
			So(played.Status, ShouldEqual, models.MatchStatusScheduled)
			So([]uuid.UUID{*played.Participant1ID, *played.Participant2ID}, ShouldResemble, []uuid.UUID{seeds[3].ID, seeds[4].ID})
		})

		Convey("Bye winners are advanced at build time", func() {
			semis := b.Rounds[1]
			So(semis[0].Stage, ShouldEqual, models.StageSemifinal)
			So(semis[0].Status, ShouldEqual, models.MatchStatusPending)
			So(semis[0].Participants(), ShouldResemble, []uuid.UUID{seeds[0].ID})
			So(semis[1].Status, ShouldEqual, models.MatchStatusScheduled)
			So(semis[1].Participants(), ShouldResemble, []uuid.UUID{seeds[1].ID, seeds[2].ID})
			So(b.Final().Stage, ShouldEqual, models.StageFinal)
			So(b.Final().Status, ShouldEqual, models.MatchStatusPending)
			So(b.Final().Participants(), ShouldBeEmpty)
		})

		Convey("Linkage is bidirectional", func() {
			all := byID(b)
			for _, m := range b.Matches() {
				if m.IsThirdPlaceMatch || m == b.Final() {
					So(m.NextMatchID, ShouldBeNil)
					continue
				}
				So(m.NextMatchID, ShouldNotBeNil)
				next := all[*m.NextMatchID]
				So(next.SlotFor(m.ID), ShouldBeIn, []int{0, 1})
			}
			for _, round := range b.Rounds[1:] {
				for _, m := range round {
					So(m.PreviousMatches(), ShouldHaveLength, 2)
				}
			}
		})

		Convey("One pending consolation match sits after the final", func() {
			c := b.Consolation
			So(c.IsThirdPlaceMatch, ShouldBeTrue)
			So(c.Stage, ShouldEqual, models.StageConsolation)
			So(c.Status, ShouldEqual, models.MatchStatusPending)
			So(c.Round, ShouldEqual, 4)
			So(c.Participants(), ShouldBeEmpty)
		})
	})

	Convey("Two entrants play a single final", t, func() {
		b, err := brackets.Build(uuid.New(), entrants(2))
		So(err, ShouldBeNil)
		So(b.Rounds, ShouldHaveLength, 1)
		So(b.Final().Stage, ShouldEqual, models.StageFinal)
		So(b.Final().Status, ShouldEqual, models.MatchStatusScheduled)
		So(b.Byes, ShouldBeEmpty)
	})

	Convey("Every entrant count gets a bracket without double byes", t, func() {
		for n := 2; n <= 33; n++ {
			b, err := brackets.Build(uuid.New(), entrants(n))
			So(err, ShouldBeNil)
			So(len(b.Byes), ShouldEqual, brackets.NextPowerOfTwo(n)-n)
			So(len(b.Matches()), ShouldEqual, brackets.NextPowerOfTwo(n))
		}
	})

	Convey("Invalid entrant lists are rejected", t, func() {
		_, err := brackets.Build(uuid.New(), entrants(1))
		So(errors.Is(err, brackets.ErrNotEnoughEntrants), ShouldBeTrue)
		So(errors.Is(err, apperr.ErrValidation), ShouldBeTrue)

		dup := entrants(3)
		dup[2] = dup[0]
		_, err = brackets.Build(uuid.New(), dup)
		So(errors.Is(err, apperr.ErrValidation), ShouldBeTrue)
	})
}

func TestAdvance(t *testing.T) {
	Convey("Given a four entrant bracket", t, func() {
		seeds := entrants(4)
		b, err := brackets.Build(uuid.New(), seeds)
		So(err, ShouldBeNil)
		semi1, semi2, final := b.Rounds[0][0], b.Rounds[0][1], b.Final()
		So(semi1.Stage, ShouldEqual, models.StageSemifinal)

		_, err = progression.Decide(semi1, seeds[3].ID)
		So(err, ShouldBeNil)

		Convey("Advancing twice yields the same state", func() {
			res, err := brackets.Advance(semi1, final, b.Consolation, b.IsBye)
			So(err, ShouldBeNil)
			So(res.NextChanged, ShouldBeTrue)
			So(res.ConsolationChanged, ShouldBeTrue)
			So(*res.LoserID, ShouldEqual, seeds[0].ID)

			before := final.Clone()
			consolation := b.Consolation.Clone()
			res, err = brackets.Advance(semi1, final, b.Consolation, b.IsBye)
			So(err, ShouldBeNil)
			So(res.NextChanged, ShouldBeFalse)
			So(res.ConsolationChanged, ShouldBeFalse)
			So(final, ShouldResemble, before)
			So(b.Consolation, ShouldResemble, consolation)
			So(final.Participants(), ShouldResemble, []uuid.UUID{seeds[3].ID})
		})

		Convey("Both semifinals fill the final and the consolation", func() {
			_, err := brackets.Advance(semi1, final, b.Consolation, b.IsBye)
			So(err, ShouldBeNil)
			_, err = progression.Decide(semi2, seeds[1].ID)
			So(err, ShouldBeNil)
			_, err = brackets.Advance(semi2, final, b.Consolation, b.IsBye)
			So(err, ShouldBeNil)

			So(final.Status, ShouldEqual, models.MatchStatusScheduled)
			So(final.Participants(), ShouldResemble, []uuid.UUID{seeds[3].ID, seeds[1].ID})
			So(b.Consolation.Status, ShouldEqual, models.MatchStatusScheduled)
			So(b.Consolation.Participants(), ShouldResemble, []uuid.UUID{seeds[0].ID, seeds[2].ID})

			Convey("Completing the final is reported as decisive", func() {
				_, err := progression.Decide(final, seeds[1].ID)
				So(err, ShouldBeNil)
				res, err := brackets.Advance(final, nil, b.Consolation, b.IsBye)
				So(err, ShouldBeNil)
				So(res.FinalDecided, ShouldBeTrue)
				So(res.WinnerID, ShouldEqual, seeds[1].ID)
			})
		})

		Convey("A full next match without the winner is a conflict", func() {
			final.Participant1ID = models.IDPtr(uuid.New())
			final.Participant2ID = models.IDPtr(uuid.New())
			_, err := brackets.Advance(semi1, final, b.Consolation, b.IsBye)
			So(errors.Is(err, brackets.ErrSlotsFull), ShouldBeTrue)
			So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
		})

		Convey("An unfinished match cannot be advanced", func() {
			_, err := brackets.Advance(semi2, final, b.Consolation, b.IsBye)
			So(errors.Is(err, brackets.ErrNotCompleted), ShouldBeTrue)
		})

		Convey("The wrong next match is rejected", func() {
			_, err := brackets.Advance(semi1, semi2, b.Consolation, b.IsBye)
			So(errors.Is(err, brackets.ErrBrokenLink), ShouldBeTrue)
		})
	})
}

func TestResolveWinner(t *testing.T) {
	Convey("Given a bracket with byes", t, func() {
		seeds := entrants(3)
		b, err := brackets.Build(uuid.New(), seeds)
		So(err, ShouldBeNil)
		byeMatch := b.Rounds[0][0]
		So(b.IsBye(*byeMatch.Participant2ID), ShouldBeTrue)

		Convey("A bye match always resolves to the seeded participant", func() {
			w, err := brackets.ResolveWinner(byeMatch, byeMatch.Participant2ID, b.IsBye)
			So(err, ShouldBeNil)
			So(w, ShouldEqual, seeds[0].ID)
		})

		Convey("A supplied winner must play in the match", func() {
			m := b.Rounds[0][1]
			_, err := brackets.ResolveWinner(m, models.IDPtr(seeds[0].ID), b.IsBye)
			So(errors.Is(err, progression.ErrWinnerNotInMatch), ShouldBeTrue)
			_, err = brackets.ResolveWinner(m, nil, b.IsBye)
			So(errors.Is(err, brackets.ErrWinnerRequired), ShouldBeTrue)
			w, err := brackets.ResolveWinner(m, models.IDPtr(seeds[2].ID), b.IsBye)
			So(err, ShouldBeNil)
			So(w, ShouldEqual, seeds[2].ID)
		})

		Convey("A recorded winner cannot be replaced", func() {
			m := b.Rounds[0][1]
			_, err := progression.Decide(m, seeds[1].ID)
			So(err, ShouldBeNil)
			_, err = brackets.ResolveWinner(m, models.IDPtr(seeds[2].ID), b.IsBye)
			So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
		})

		Convey("The bye loser never enters the consolation match", func() {
			So(b.Consolation.Participants(), ShouldBeEmpty)
		})
	})
}
