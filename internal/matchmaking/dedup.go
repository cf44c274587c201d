package matchmaking

import (
	"time"

	"github.com/spigell/matchmaker/internal/models"
)

// DefaultRecencyWindow is how long a recorded match blocks the pair from being proposed again.
const DefaultRecencyWindow = 7 * 24 * time.Hour

// ValidMatches returns the matches still inside the recency window, in their stored order.
func ValidMatches(matches []models.RecordedMatch, now time.Time, window time.Duration) []models.RecordedMatch {
	valid := make([]models.RecordedMatch, 0, len(matches))
	for _, m := range matches {
		if m.ValidAt(now, window) {
			valid = append(valid, m)
		}
	}
	return valid
}

// DedupIndex holds the canonical ids of pairs that must not be proposed again.
type DedupIndex map[string]struct{}

// BuildDedupIndex indexes the matches of every owner. Callers pass already validated lists.
func BuildDedupIndex(matches map[string][]models.RecordedMatch) DedupIndex {
	index := DedupIndex{}
	for owner, list := range matches {
		for _, m := range list {
			index.Add(owner, m.UserID)
		}
	}
	return index
}

func (d DedupIndex) Add(a, b string) {
	d[models.CanonicalMatchID(a, b)] = struct{}{}
}

func (d DedupIndex) Contains(a, b string) bool {
	_, ok := d[models.CanonicalMatchID(a, b)]
	return ok
}
