package matchmaking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store/memory"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// fakeOracle rates pairs from a table keyed by canonical match id.
type fakeOracle struct {
	mu      sync.Mutex
	ratings map[string]int
	fail    map[string]error
	panics  map[string]bool
	calls   []string
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		ratings: map[string]int{},
		fail:    map[string]error{},
		panics:  map[string]bool{},
	}
}

func (o *fakeOracle) rate(a, b string, rating int) *fakeOracle {
	o.ratings[models.CanonicalMatchID(a, b)] = rating
	return o
}

func (o *fakeOracle) ScorePair(_ context.Context, subject *models.Profile, _ *models.Persona, candidate *models.Profile, _ *models.Persona) (*models.MatchResult, error) {
	id := models.CanonicalMatchID(subject.UserID, candidate.UserID)

	o.mu.Lock()
	o.calls = append(o.calls, subject.UserID+">"+candidate.UserID)
	o.mu.Unlock()

	if o.panics[id] {
		panic("oracle exploded")
	}
	if err := o.fail[id]; err != nil {
		return nil, err
	}

	return &models.MatchResult{
		CompatibilityRating: o.ratings[id],
		Rationale1:          "for " + subject.UserID,
		Rationale2:          "for " + candidate.UserID,
		HighlightedThemes:   []string{"Values & Beliefs"},
	}, nil
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func profiles(ids ...string) []*models.Profile {
	out := make([]*models.Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Profile{UserID: id})
	}
	return out
}

func personas(ids ...string) []*models.Persona {
	out := make([]*models.Persona, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Persona{UserID: id, Description: "persona of " + id})
	}
	return out
}

// newFixtureStore creates a memory store where every user has a persona.
func newFixtureStore(ids []string, matches map[string]*models.StoredMatches) *memory.Store {
	return memory.New(&memory.Fixture{
		Profiles: profiles(ids...),
		Personas: personas(ids...),
		Matches:  matches,
	}, memory.WithClock(fixedClock))
}

func newTestDiscoverer(oracle *fakeOracle, st PersonaSource) *Discoverer {
	filters := filtering.Default(filtering.Options{Now: fixedClock}, nil)
	scorer := NewPairScorer(oracle, st, 2, nil)
	return NewDiscoverer(filters, scorer, DefaultSubsetSize, DefaultMinRating, nil)
}

func newTestRunner(st *memory.Store, oracle *fakeOracle, opts ...Option) *Runner {
	base := []Option{
		WithClock(fixedClock),
		WithIDGenerator(func() string { return "run-1" }),
	}
	return NewRunner(st, newTestDiscoverer(oracle, st), append(base, opts...)...)
}

func storedMatches(t *testing.T, st *memory.Store, userID string) []models.RecordedMatch {
	t.Helper()

	stored, err := st.Matches(context.Background(), userID)
	if err != nil {
		t.Fatalf("loading matches of %s: %v", userID, err)
	}
	return stored.Matches
}

func counterparts(list []models.RecordedMatch) []string {
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.UserID)
	}
	return ids
}

var errOracleDown = errors.New("oracle unavailable")
