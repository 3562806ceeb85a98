package groups

import "strings"

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Label returns the bijective base-26 label of a 1-based group number:
// 1 -> A, 26 -> Z, 27 -> AA, 28 -> AB.
func Label(number int) string {
	if number <= 0 {
		return ""
	}
	var b []byte
	for number > 0 {
		number--
		b = append(b, alphabet[number%26])
		number /= 26
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// Labels returns the labels for groups 1..count in declaration order.
func Labels(count int) []string {
	names := make([]string, 0, max(count, 0))
	for i := 1; i <= count; i++ {
		names = append(names, Label(i))
	}
	return names
}

// LessLabel orders labels the way they are generated (B before AA).
func LessLabel(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return strings.Compare(a, b) < 0
}
