package groups_test

import (
	"math/rand/v2"
	"testing"

	"github.com/Dosada05/tournament-engine/groups"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

func member(name, region string) *models.Participant {
	return &models.Participant{ID: uuid.New(), Name: name, Region: region}
}

func load(name string, max int, members ...*models.Participant) groups.GroupLoad {
	return groups.GroupLoad{
		Group:   &models.Group{ID: uuid.New(), Name: name, Max: max},
		Members: members,
	}
}

func completedMatch(a, b uuid.UUID) *models.Match {
	return &models.Match{
		ID:             uuid.New(),
		Participant1ID: models.IDPtr(a),
		Participant2ID: models.IDPtr(b),
		Stage:          models.StageGroup,
		Status:         models.MatchStatusCompleted,
	}
}

func TestLabels(t *testing.T) {
	Convey("Group labels follow alphabetic numeration", t, func() {
		So(groups.Label(1), ShouldEqual, "A")
		So(groups.Label(26), ShouldEqual, "Z")
		So(groups.Label(27), ShouldEqual, "AA")
		So(groups.Label(28), ShouldEqual, "AB")
		So(groups.Label(52), ShouldEqual, "AZ")
		So(groups.Label(53), ShouldEqual, "BA")
		So(groups.Label(702), ShouldEqual, "ZZ")
		So(groups.Label(703), ShouldEqual, "AAA")
		So(groups.Label(0), ShouldEqual, "")
		So(groups.Labels(3), ShouldResemble, []string{"A", "B", "C"})
		So(groups.Labels(0), ShouldBeEmpty)
		So(groups.LessLabel("Z", "AA"), ShouldBeTrue)
		So(groups.LessLabel("AB", "AA"), ShouldBeFalse)
	})
}

func TestBalancer(t *testing.T) {
	Convey("Given a balancer with a fixed random source", t, func() {
		b := groups.NewBalancer(rand.New(rand.NewPCG(1, 2)))

		Convey("The smallest group wins when it is the only region-clean option", func() {
			a := load("A", 4, member("a1", "EU"), member("a2", "NA"))
			bb := load("B", 4, member("b1", "EU"), member("b2", "SA"))
			c := load("C", 4, member("c1", "NA"))

			g, err := b.Pick(groups.Applicant{Name: "new", Region: "EU"}, []groups.GroupLoad{a, bb, c})
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "C")
		})

		Convey("Among equally small groups the first region-clean one is chosen", func() {
			a := load("A", 4, member("a1", "EU"))
			bb := load("B", 4, member("b1", "NA"))
			c := load("C", 4, member("c1", "SA"))

			g, err := b.Pick(groups.Applicant{Region: "EU"}, []groups.GroupLoad{a, bb, c})
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "B")
		})

		Convey("A conflicted smallest group falls back to region counts across open groups", func() {
			a := load("A", 4, member("a1", "EU"))
			bb := load("B", 4, member("b1", "NA"), member("b2", "SA"))

			g, err := b.Pick(groups.Applicant{Region: "EU"}, []groups.GroupLoad{a, bb})
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "B")
		})

		Convey("Without a clean candidate the fewest same-region members win, then size", func() {
			// Smallest groups A and B both hold EU players; C is bigger but has a single EU player.
			a := load("A", 5, member("a1", "EU"), member("a2", "EU"))
			bb := load("B", 5, member("b1", "EU"), member("b2", "EU"))
			c := load("C", 5, member("c1", "EU"), member("c2", "NA"), member("c3", "SA"))
			d := load("D", 5, member("d1", "EU"), member("d2", "NA"), member("d3", "SA"))

			g, err := b.Pick(groups.Applicant{Region: "EU"}, []groups.GroupLoad{a, bb, c, d})
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "C")
		})

		Convey("Same-region ties fall back to the smallest, then declaration order", func() {
			a := load("A", 5, member("a1", "EU"), member("a2", "NA"), member("a3", "SA"))
			bb := load("B", 5, member("b1", "EU"), member("b2", "NA"))
			c := load("C", 5, member("c1", "EU"), member("c2", "SA"))

			g, err := b.Pick(groups.Applicant{Region: "EU"}, []groups.GroupLoad{a, bb, c})
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "B")
		})

		Convey("Full groups are skipped while any group has room", func() {
			a := load("A", 1, member("a1", "NA"))
			bb := load("B", 3, member("b1", "EU"), member("b2", "EU"))

			g, err := b.Pick(groups.Applicant{Region: "EU"}, []groups.GroupLoad{a, bb})
			So(err, ShouldBeNil)
			So(g.Name, ShouldEqual, "B")
		})

		Convey("When every group is full any group may be returned", func() {
			loads := []groups.GroupLoad{
				load("A", 1, member("a1", "EU")),
				load("B", 1, member("b1", "EU")),
				load("C", 1, member("c1", "EU")),
			}
			seen := map[string]bool{}
			for i := 0; i < 200; i++ {
				g, err := b.Pick(groups.Applicant{Region: "EU"}, loads)
				So(err, ShouldBeNil)
				seen[g.Name] = true
			}
			So(len(seen), ShouldEqual, 3)
		})

		Convey("No groups is a state error", func() {
			_, err := b.Pick(groups.Applicant{Region: "EU"}, nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestStageCompletion(t *testing.T) {
	Convey("Group stage completion counts distinct completed pairs", t, func() {
		Convey("It is true iff pairs reach n(n-1)/2", func() {
			for n := 0; n <= 6; n++ {
				required := groups.RequiredPairings(n)
				for c := 0; c <= required+1; c++ {
					want := n >= 2 && c >= required
					So(groups.StageEnded(n, c), ShouldEqual, want)
				}
			}
		})

		Convey("Rematches and incomplete matches are not double counted", func() {
			p := []*models.Participant{member("a", "X"), member("b", "X"), member("c", "X")}
			ids := []uuid.UUID{p[0].ID, p[1].ID, p[2].ID}
			matches := []*models.Match{
				completedMatch(p[0].ID, p[1].ID),
				completedMatch(p[1].ID, p[0].ID),
				completedMatch(p[0].ID, p[2].ID),
				{
					Participant1ID: models.IDPtr(p[1].ID),
					Participant2ID: models.IDPtr(p[2].ID),
					Stage:          models.StageGroup,
					Status:         models.MatchStatusOngoing,
				},
			}
			So(groups.UniquePairings(ids, matches), ShouldEqual, 2)

			g := &models.Group{ID: uuid.New(), Name: "A", Max: 4}
			res := groups.Compute(g, p, matches)
			So(res.GroupStageEnded, ShouldBeFalse)
			So(res.RequiredPairings, ShouldEqual, 3)

			matches = append(matches, completedMatch(p[2].ID, p[1].ID))
			res = groups.Compute(g, p, matches)
			So(res.GroupStageEnded, ShouldBeTrue)
			So(res.CompletedPairings, ShouldEqual, 3)
		})

		Convey("Pairs with outsiders never inflate the count", func() {
			a, b := member("a", "X"), member("b", "X")
			outsider := uuid.New()
			matches := []*models.Match{completedMatch(a.ID, outsider), completedMatch(b.ID, outsider)}
			So(groups.UniquePairings([]uuid.UUID{a.ID, b.ID}, matches), ShouldEqual, 0)
		})

		Convey("A single participant never ends the stage", func() {
			g := &models.Group{ID: uuid.New(), Name: "A", Max: 4}
			res := groups.Compute(g, []*models.Participant{member("solo", "X")}, nil)
			So(res.GroupStageEnded, ShouldBeFalse)
		})
	})
}

func TestRanking(t *testing.T) {
	Convey("Standings rank victories, then sets, then total points", t, func() {
		a := member("a", "X")
		a.Victories, a.TotalSets, a.GroupPoints = 1, 4, 60
		b := member("b", "X")
		b.Victories, b.TotalSets, b.GroupPoints = 2, 4, 40
		c := member("c", "X")
		c.Victories, c.TotalSets, c.GroupPoints = 1, 5, 10
		d := member("d", "X")
		d.Victories, d.TotalSets, d.GroupPoints, d.ElimPoints = 1, 4, 50, 20
		e := member("e", "X")
		e.Victories, e.TotalSets, e.GroupPoints = 1, 4, 60

		table := groups.Rank([]*models.Participant{a, b, c, d, e})
		names := make([]string, len(table))
		for i, row := range table {
			names[i] = row.Name
			So(row.Position, ShouldEqual, i+1)
		}
		// d has 70 total points; a and e tie fully and keep insertion order.
		So(names, ShouldResemble, []string{"b", "c", "d", "a", "e"})
		So(table[2].TotalPoints, ShouldEqual, 70)
	})
}

func TestAvailableOpponents(t *testing.T) {
	Convey("Available opponents exclude self and already met members", t, func() {
		a, b, c, d := member("a", "X"), member("b", "X"), member("c", "X"), member("d", "X")
		ongoing := completedMatch(a.ID, c.ID)
		ongoing.Status = models.MatchStatusOngoing
		matches := []*models.Match{completedMatch(a.ID, b.ID), ongoing, completedMatch(b.ID, d.ID)}

		got := groups.AvailableOpponents(a.ID, []*models.Participant{a, b, c, d}, matches)
		So(len(got), ShouldEqual, 1)
		So(got[0].Name, ShouldEqual, "d")
	})

	Convey("Fixtures enumerate every pairing once", t, func() {
		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
		fx := groups.Fixtures(ids)
		So(len(fx), ShouldEqual, 6)
		So(groups.NewPairing(ids[0], ids[1]), ShouldEqual, groups.NewPairing(ids[1], ids[0]))
	})
}

func TestQualifiers(t *testing.T) {
	Convey("Qualifiers are seeded tier by tier", t, func() {
		a1, a2, a3 := member("a1", "X"), member("a2", "X"), member("a3", "X")
		a1.Victories, a2.Victories = 2, 1
		b1, b2 := member("b1", "X"), member("b2", "X")
		b1.Victories, b1.TotalSets = 2, 5
		b2.Victories = 0
		c1, c2 := member("c1", "X"), member("c2", "X")
		c1.Victories, c2.Victories = 1, 1
		c1.TotalSets = 3

		members := [][]*models.Participant{{a3, a2, a1}, {b2, b1}, {c2, c1}}

		Convey("First places come before second places", func() {
			seeded := groups.Qualifiers(members, 2)
			names := make([]string, len(seeded))
			for i, p := range seeded {
				names[i] = p.Name
			}
			So(names, ShouldResemble, []string{"b1", "a1", "c1", "a2", "c2", "b2"})
		})

		Convey("Full ties inside a tier keep group order", func() {
			x, y := member("x", "X"), member("y", "X")
			seeded := groups.Qualifiers([][]*models.Participant{{x}, {y}}, 1)
			So(seeded[0].Name, ShouldEqual, "x")
			So(seeded[1].Name, ShouldEqual, "y")
		})

		Convey("Short groups only contribute what they have", func() {
			seeded := groups.Qualifiers([][]*models.Participant{{a1}, {b1, b2}}, 2)
			So(len(seeded), ShouldEqual, 3)
		})
	})
}
