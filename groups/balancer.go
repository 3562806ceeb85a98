package groups

import (
	"math/rand/v2"

	"github.com/Dosada05/tournament-engine/apperr"
	"github.com/Dosada05/tournament-engine/models"
)

// Applicant is a participant that is about to be placed into a group.
type Applicant struct {
	Name   string
	Region string
}

// GroupLoad is a group together with its current members.
type GroupLoad struct {
	Group   *models.Group
	Members []*models.Participant
}

func (l GroupLoad) size() int { return len(l.Members) }

func (l GroupLoad) full() bool { return len(l.Members) >= l.Group.Max }

func (l GroupLoad) sameRegion(region string) int {
	n := 0
	for _, m := range l.Members {
		if m.Region == region {
			n++
		}
	}
	return n
}

// Balancer places applicants into the least loaded, least region-conflicted group.
type Balancer struct {
	rnd *rand.Rand
}

// NewBalancer returns a Balancer; a nil rnd falls back to a randomly seeded source.
func NewBalancer(rnd *rand.Rand) *Balancer {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Balancer{rnd: rnd}
}

// Pick returns the group the applicant should join. loads must be in
// declaration order; ties are always resolved by that order.
func (b *Balancer) Pick(applicant Applicant, loads []GroupLoad) (*models.Group, error) {
	if len(loads) == 0 {
		return nil, apperr.State("tournament has no groups yet")
	}

	open := make([]GroupLoad, 0, len(loads))
	for _, l := range loads {
		if !l.full() {
			open = append(open, l)
		}
	}
	// Capacity is a soft cap once every group is full.
	if len(open) == 0 {
		return loads[b.rnd.IntN(len(loads))].Group, nil
	}

	minSize := open[0].size()
	for _, l := range open[1:] {
		minSize = min(minSize, l.size())
	}
	for _, l := range open {
		if l.size() == minSize && l.sameRegion(applicant.Region) == 0 {
			return l.Group, nil
		}
	}

	// No region-clean group among the smallest: minimise same-region count over
	// every open group, then size, then declaration order.
	best := open[0]
	bestCount := best.sameRegion(applicant.Region)
	for _, l := range open[1:] {
		c := l.sameRegion(applicant.Region)
		if c < bestCount || (c == bestCount && l.size() < best.size()) {
			best, bestCount = l, c
		}
	}
	return best.Group, nil
}
