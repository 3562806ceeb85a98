package progression_test

import (
	"errors"
	"testing"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/progression"
	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

func newMatch(stage models.MatchStage, status models.MatchStatus) (*models.Match, uuid.UUID, uuid.UUID) {
	p1, p2 := uuid.New(), uuid.New()
	return &models.Match{
		ID:             uuid.New(),
		Participant1ID: models.IDPtr(p1),
		Participant2ID: models.IDPtr(p2),
		Stage:          stage,
		Status:         status,
	}, p1, p2
}

func TestRecordSet(t *testing.T) {
	Convey("Given an ongoing group match", t, func() {
		m, p1, p2 := newMatch(models.StageGroup, models.MatchStatusOngoing)

		Convey("A best-of-three goes the distance", func() {
			first, err := progression.RecordSet(m, 11, 7)
			So(err, ShouldBeNil)
			So(first.Completed, ShouldBeFalse)
			So(first.Set.Number, ShouldEqual, 1)
			So(first.Set.WinnerID, ShouldEqual, p1)
			So(first.Deltas[p1], ShouldResemble, models.StatsDelta{GroupPoints: 11, TotalSets: 1})
			So(first.Deltas[p2], ShouldResemble, models.StatsDelta{GroupPoints: 7})

			second, err := progression.RecordSet(m, 5, 11)
			So(err, ShouldBeNil)
			So(second.Completed, ShouldBeFalse)
			So(m.Status, ShouldEqual, models.MatchStatusOngoing)

			third, err := progression.RecordSet(m, 11, 9)
			So(err, ShouldBeNil)
			So(third.Completed, ShouldBeTrue)
			So(*third.WinnerID, ShouldEqual, p1)
			So(third.Deltas[p1].Victories, ShouldEqual, 1)
			So(third.Deltas[p2].Victories, ShouldEqual, 0)

			So(m.Status, ShouldEqual, models.MatchStatusCompleted)
			So(*m.WinnerID, ShouldEqual, p1)
			So(m.Sets, ShouldHaveLength, 3)

			total := map[uuid.UUID]models.StatsDelta{}
			for _, o := range []*progression.Outcome{first, second, third} {
				for id, d := range o.Deltas {
					total[id] = total[id].Add(d)
				}
			}
			So(total[p1], ShouldResemble, models.StatsDelta{GroupPoints: 27, Victories: 1, TotalSets: 2})
			So(total[p2], ShouldResemble, models.StatsDelta{GroupPoints: 27, TotalSets: 1})

			Convey("A fourth set is a conflict", func() {
				_, err := progression.RecordSet(m, 11, 0)
				So(errors.Is(err, progression.ErrMatchCompleted), ShouldBeTrue)
				So(errors.Is(err, apperr.ErrConflict), ShouldBeTrue)
				So(m.Sets, ShouldHaveLength, 3)
			})
		})

		Convey("Two straight sets end the match", func() {
			_, err := progression.RecordSet(m, 3, 11)
			So(err, ShouldBeNil)
			out, err := progression.RecordSet(m, 9, 11)
			So(err, ShouldBeNil)
			So(out.Completed, ShouldBeTrue)
			So(*out.WinnerID, ShouldEqual, p2)
		})

		Convey("Invalid scores leave the match untouched", func() {
			_, err := progression.RecordSet(m, 10, 10)
			So(errors.Is(err, apperr.ErrValidation), ShouldBeTrue)
			_, err = progression.RecordSet(m, -1, 11)
			So(errors.Is(err, progression.ErrNegativePoints), ShouldBeTrue)
			So(m.Sets, ShouldBeEmpty)
			So(m.Status, ShouldEqual, models.MatchStatusOngoing)
		})
	})

	Convey("Given a group match that was never started", t, func() {
		m, _, _ := newMatch(models.StageGroup, models.MatchStatusScheduled)
		_, err := progression.RecordSet(m, 11, 3)
		So(errors.Is(err, progression.ErrNotPlayable), ShouldBeTrue)
		So(errors.Is(err, apperr.ErrState), ShouldBeTrue)
	})

	Convey("Given a bracket match", t, func() {
		Convey("Sets are accepted from scheduled and credit elimination points", func() {
			m, p1, _ := newMatch(models.StageSemifinal, models.MatchStatusScheduled)
			out, err := progression.RecordSet(m, 11, 4)
			So(err, ShouldBeNil)
			So(out.Deltas[p1], ShouldResemble, models.StatsDelta{ElimPoints: 11, TotalSets: 1})
			So(m.Status, ShouldEqual, models.MatchStatusOngoing)
		})

		Convey("A match waiting for an opponent is a conflict", func() {
			m, _, _ := newMatch(models.StageFinal, models.MatchStatusPending)
			m.Participant2ID = nil
			_, err := progression.RecordSet(m, 11, 4)
			So(errors.Is(err, progression.ErrNotEnoughParticipants), ShouldBeTrue)
		})
	})
}

func TestAccepts(t *testing.T) {
	Convey("Accepted statuses depend on the stage", t, func() {
		So(progression.Accepts(models.StageGroup, models.MatchStatusOngoing), ShouldBeTrue)
		So(progression.Accepts(models.StageGroup, models.MatchStatusScheduled), ShouldBeFalse)
		So(progression.Accepts(models.StageGroup, models.MatchStatusPending), ShouldBeFalse)
		for _, stage := range []models.MatchStage{models.StageFinals, models.StageSemifinal, models.StageFinal, models.StageConsolation} {
			So(progression.Accepts(stage, models.MatchStatusScheduled), ShouldBeTrue)
			So(progression.Accepts(stage, models.MatchStatusPending), ShouldBeTrue)
			So(progression.Accepts(stage, models.MatchStatusOngoing), ShouldBeTrue)
			So(progression.Accepts(stage, models.MatchStatusCompleted), ShouldBeFalse)
		}
	})
}

func TestStartAndDecide(t *testing.T) {
	Convey("Given a scheduled final", t, func() {
		m, p1, p2 := newMatch(models.StageFinal, models.MatchStatusScheduled)

		So(progression.Start(m), ShouldBeNil)
		So(m.Status, ShouldEqual, models.MatchStatusOngoing)
		So(progression.Start(m), ShouldBeNil)

		Convey("Deciding twice with the same winner is a no-op", func() {
			changed, err := progression.Decide(m, p2)
			So(err, ShouldBeNil)
			So(changed, ShouldBeTrue)
			changed, err = progression.Decide(m, p2)
			So(err, ShouldBeNil)
			So(changed, ShouldBeFalse)

			_, err = progression.Decide(m, p1)
			So(errors.Is(err, progression.ErrWinnerMismatch), ShouldBeTrue)
			So(errors.Is(progression.Start(m), progression.ErrMatchCompleted), ShouldBeTrue)
		})

		Convey("An outsider cannot win", func() {
			_, err := progression.Decide(m, uuid.New())
			So(errors.Is(err, progression.ErrWinnerNotInMatch), ShouldBeTrue)
		})
	})
}
