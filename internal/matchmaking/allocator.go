package matchmaking

import (
	"sort"
	"time"

	"github.com/spigell/matchmaker/internal/models"
)

// DefaultQuota is the maximum number of new matches one user receives per run.
const DefaultQuota = 3

// Edge is a candidate pairing discovered from Subject's side. Result.Rationale1 is for Subject.
type Edge struct {
	Subject   string
	Candidate string
	Result    models.MatchResult
}

func (e Edge) ID() string {
	return models.CanonicalMatchID(e.Subject, e.Candidate)
}

// Pool collects edges from every subject, keeping only the first edge seen for a pair.
type Pool struct {
	edges []Edge
	seen  map[string]struct{}
}

func NewPool() *Pool {
	return &Pool{seen: map[string]struct{}{}}
}

// Add appends the prospects of subject and returns how many were new to the pool.
func (p *Pool) Add(subject string, prospects []Prospect) int {
	added := 0
	for _, prospect := range prospects {
		edge := Edge{Subject: subject, Candidate: prospect.Candidate.UserID, Result: prospect.Result}
		if _, dup := p.seen[edge.ID()]; dup {
			continue
		}
		p.seen[edge.ID()] = struct{}{}
		p.edges = append(p.edges, edge)
		added++
	}
	return added
}

func (p *Pool) Len() int { return len(p.edges) }

func (p *Pool) MaxRating() int {
	best := 0
	for _, e := range p.edges {
		best = max(best, e.Result.CompatibilityRating)
	}
	return best
}

// Edges returns the edges in insertion order.
func (p *Pool) Edges() []Edge {
	return append([]Edge(nil), p.edges...)
}

// Allocation is the outcome of one greedy pass over the pool.
type Allocation struct {
	Committed []Edge
	Skipped   []Edge
	// Matches holds the new records per owner, in commit order.
	Matches map[string][]models.RecordedMatch
	// Counts is the final per-user counter, including seeded values.
	Counts map[string]int
}

// Allocate walks the pool from the highest rating down and commits a pair when both users
// are still below quota. Equal ratings keep insertion order. Skipped pairs are final.
// seed holds counters already used before this run and is not modified.
func Allocate(pool *Pool, quota int, seed map[string]int, now time.Time) *Allocation {
	if quota <= 0 {
		quota = DefaultQuota
	}

	sorted := pool.Edges()
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Result.CompatibilityRating > sorted[j].Result.CompatibilityRating
	})

	alloc := &Allocation{
		Matches: map[string][]models.RecordedMatch{},
		Counts:  make(map[string]int, len(seed)),
	}
	for id, n := range seed {
		alloc.Counts[id] = n
	}

	for _, edge := range sorted {
		if alloc.Counts[edge.Subject] >= quota || alloc.Counts[edge.Candidate] >= quota {
			alloc.Skipped = append(alloc.Skipped, edge)
			continue
		}

		subjectSide, candidateSide := models.NewRecordedMatches(edge.Subject, edge.Candidate, edge.Result, now)
		alloc.Matches[edge.Subject] = append(alloc.Matches[edge.Subject], subjectSide)
		alloc.Matches[edge.Candidate] = append(alloc.Matches[edge.Candidate], candidateSide)

		alloc.Counts[edge.Subject]++
		alloc.Counts[edge.Candidate]++
		alloc.Committed = append(alloc.Committed, edge)
	}

	return alloc
}
