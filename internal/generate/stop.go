package generate

import "strings"

// findStop returns the index of the earliest stop sequence occurrence in text.
func findStop(text string, stops []string) (int, bool) {
	best := -1
	for _, stop := range stops {
		if i := strings.Index(text, stop); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best, best >= 0
}

// stopPrefixLen returns the length of the longest suffix of text that is a
// proper prefix of some stop sequence. That tail must be held back because a
// later token could complete the stop sequence.
func stopPrefixLen(text string, stops []string) int {
	longest := 0
	for _, stop := range stops {
		for n := min(len(stop)-1, len(text)); n > longest; n-- {
			if strings.HasSuffix(text, stop[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}
