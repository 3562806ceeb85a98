package groups

import (
	"bytes"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/google/uuid"
)

// Pairing is an unordered pair of participants; Low always sorts before High.
type Pairing struct {
	Low  uuid.UUID
	High uuid.UUID
}

// NewPairing normalises the pair so that (a, b) and (b, a) compare equal.
func NewPairing(a, b uuid.UUID) Pairing {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Pairing{Low: a, High: b}
}

// Fixtures lists every pairing of a single round-robin in registration order.
func Fixtures(participantIDs []uuid.UUID) []Pairing {
	n := len(participantIDs)
	pairs := make([]Pairing, 0, RequiredPairings(n))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, NewPairing(participantIDs[i], participantIDs[j]))
		}
	}
	return pairs
}

// AvailableOpponents returns the members that participantID has not met in any
// group-stage match yet, preserving member order.
func AvailableOpponents(participantID uuid.UUID, members []*models.Participant, matches []*models.Match) []*models.Participant {
	met := make(map[uuid.UUID]bool)
	for _, m := range matches {
		if m.Stage != models.StageGroup || !m.HasParticipant(participantID) {
			continue
		}
		if other := m.Opponent(participantID); other != nil {
			met[*other] = true
		}
	}

	out := make([]*models.Participant, 0, len(members))
	for _, p := range members {
		if p.ID == participantID || met[p.ID] {
			continue
		}
		out = append(out, p)
	}
	return out
}
