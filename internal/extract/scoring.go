package extract

import "strings"

// Email candidates are ranked so a page littered with tracking and webmaster
// addresses still yields the one a human would write to. The weights favor
// role addresses businesses actually answer, penalize freemail domains, and
// bury throwaway or placeholder addresses.

var roleScores = map[string]int{
	"info@":     10,
	"contact@":  9,
	"hello@":    8,
	"support@":  7,
	"sales@":    6,
	"admin@":    5,
	"office@":   4,
	"business@": 3,
	"general@":  2,
	"noreply@":  1,
	"no-reply@": 1,
}

var freemailDomains = []string{"gmail.com", "yahoo.com", "hotmail.com"}

var junkMarkers = []string{"test@", "temp@", "example@", "sample@", "dummy@"}

// ScoreEmail computes the quality score of a single address.
func ScoreEmail(email string) int {
	addr := strings.ToLower(strings.TrimSpace(email))

	score := 0
	for marker, val := range roleScores {
		if strings.Contains(addr, marker) {
			score += val
		}
	}
	for _, marker := range junkMarkers {
		if strings.Contains(addr, marker) {
			score -= 10
			break
		}
	}
	for _, domain := range freemailDomains {
		if strings.Contains(addr, domain) {
			score -= 5
			break
		}
	}
	return score
}

// BestEmail picks the highest-scoring candidate above minScore. Candidates
// scoring at or below minScore are rejected outright; ties go to the earlier
// candidate, so page order breaks them deterministically.
func BestEmail(candidates []string, minScore int) (string, bool) {
	best := ""
	bestScore := 0
	found := false
	for _, c := range candidates {
		addr := strings.ToLower(strings.TrimSpace(c))
		if addr == "" {
			continue
		}
		score := ScoreEmail(addr)
		if score <= minScore {
			continue
		}
		if !found || score > bestScore {
			best = addr
			bestScore = score
			found = true
		}
	}
	return best, found
}
