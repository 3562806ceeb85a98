package brackets

import "github.com/Dosada05/tournament-engine/models"

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// TotalRounds is the number of elimination rounds needed for n entrants.
func TotalRounds(n int) int {
	rounds := 0
	for p := NextPowerOfTwo(n); p > 1; p >>= 1 {
		rounds++
	}
	return rounds
}

// StageForRound is the single round -> stage mapping used both when the
// bracket is written and when it is read back.
func StageForRound(round, totalRounds int) models.MatchStage {
	switch {
	case round == totalRounds:
		return models.StageFinal
	case round == totalRounds-1:
		return models.StageSemifinal
	default:
		return models.StageFinals
	}
}

// ConsolationRound is the round number stored on the third-place match.
func ConsolationRound(totalRounds int) int {
	return totalRounds + 1
}

// SeedOrder returns the first-round slot order of seeds 1..size, where size is
// a power of two: pairs (order[2i], order[2i+1]) meet in match i+1.
// For size 8 it is [1 8 4 5 2 7 3 6], so seeds 1 and 2 can only meet in the final.
func SeedOrder(size int) []int {
	order := []int{1}
	for n := 2; n <= size; n <<= 1 {
		next := make([]int, 0, n)
		for _, s := range order {
			next = append(next, s, n+1-s)
		}
		order = next
	}
	return order
}
