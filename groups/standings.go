package groups

import (
	"sort"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

// RequiredPairings is C(n,2), the size of a complete single round-robin.
func RequiredPairings(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// StageEnded reports whether a group of n members with the given number of
// distinct completed pairings has finished its round-robin.
func StageEnded(n, completedPairings int) bool {
	if n < 2 {
		return false
	}
	return completedPairings >= RequiredPairings(n)
}

// UniquePairings counts distinct unordered pairs among completed group-stage
// matches whose two participants are both in memberIDs. Rematches count once.
func UniquePairings(memberIDs []uuid.UUID, matches []*models.Match) int {
	members := make(map[uuid.UUID]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}

	seen := make(map[Pairing]struct{})
	for _, m := range matches {
		if m.Stage != models.StageGroup || m.Status != models.MatchStatusCompleted {
			continue
		}
		ids := m.Participants()
		if len(ids) != 2 || ids[0] == ids[1] || !members[ids[0]] || !members[ids[1]] {
			continue
		}
		seen[NewPairing(ids[0], ids[1])] = struct{}{}
	}
	return len(seen)
}

// Less is the canonical ranking key: victories, then total sets, then total
// points, all descending. Equal keys compare false so callers keep insertion order.
func Less(a, b *models.Participant) bool {
	if a.Victories != b.Victories {
		return a.Victories > b.Victories
	}
	if a.TotalSets != b.TotalSets {
		return a.TotalSets > b.TotalSets
	}
	return a.TotalPoints() > b.TotalPoints()
}

// Ordered returns a sorted copy of participants; full ties keep the input order.
func Ordered(participants []*models.Participant) []*models.Participant {
	ordered := make([]*models.Participant, len(participants))
	copy(ordered, participants)
	sort.SliceStable(ordered, func(i, j int) bool {
		return Less(ordered[i], ordered[j])
	})
	return ordered
}

// Rank builds the ranked table of participants.
func Rank(participants []*models.Participant) []models.Standing {
	ordered := Ordered(participants)
	table := make([]models.Standing, len(ordered))
	for i, p := range ordered {
		table[i] = models.Standing{
			Position:      i + 1,
			ParticipantID: p.ID,
			Name:          p.Name,
			Region:        p.Region,
			Victories:     p.Victories,
			TotalSets:     p.TotalSets,
			GroupPoints:   p.GroupPoints,
			TotalPoints:   p.TotalPoints(),
		}
	}
	return table
}

// Calculate builds the ranked table from members (registration order) and a
// precomputed number of distinct completed pairings.
func Calculate(group *models.Group, members []*models.Participant, completedPairings int) models.GroupStandings {
	n := len(members)
	required := RequiredPairings(n)
	return models.GroupStandings{
		GroupID:           group.ID,
		Name:              group.Name,
		TournamentID:      group.TournamentID,
		Max:               group.Max,
		Participants:      Rank(members),
		CompletedPairings: min(completedPairings, required),
		RequiredPairings:  required,
		GroupStageEnded:   StageEnded(n, completedPairings),
	}
}

// Compute is Calculate with the pairing count derived from the group's matches.
func Compute(group *models.Group, members []*models.Participant, matches []*models.Match) models.GroupStandings {
	ids := make([]uuid.UUID, len(members))
	for i, p := range members {
		ids[i] = p.ID
	}
	return Calculate(group, members, UniquePairings(ids, matches))
}
