package groups

import (
	"sort"

	"github.com/Dosada05/tournament-engine/models"
)

// Qualifiers takes the best perGroup participants of every group and orders
// them tier by tier: every first place, then every second place, and so on.
// Inside a tier the ranking key decides; full ties keep group order. members
// holds each group's participants in group declaration order.
func Qualifiers(members [][]*models.Participant, perGroup int) []*models.Participant {
	tables := make([][]*models.Participant, len(members))
	for i, ms := range members {
		tables[i] = Ordered(ms)
	}

	var seeded []*models.Participant
	for place := 0; place < perGroup; place++ {
		var tier []*models.Participant
		for _, table := range tables {
			if place < len(table) {
				tier = append(tier, table[place])
			}
		}
		sort.SliceStable(tier, func(i, j int) bool { return Less(tier[i], tier[j]) })
		seeded = append(seeded, tier...)
	}
	return seeded
}
