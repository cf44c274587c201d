package matchmaking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchmaker/internal/lock"
	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store/memory"
)

func TestRunCreatesMutualMatches(t *testing.T) {
	st := newFixtureStore([]string{"a", "b"}, nil)
	oracle := newFakeOracle().rate("a", "b", 9)

	result, err := newTestRunner(st, oracle).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "Successfully created 1 new matches", result.Message)
	assert.Equal(t, 1, result.NewMatchCount)
	assert.Equal(t, "run-1", result.RunID)

	aSide := storedMatches(t, st, "a")
	bSide := storedMatches(t, st, "b")
	require.Len(t, aSide, 1)
	require.Len(t, bSide, 1)
	assert.Equal(t, "b", aSide[0].UserID)
	assert.Equal(t, "a", bSide[0].UserID)
	assert.Equal(t, 9, aSide[0].CompatibilityRating)
	assert.True(t, aSide[0].DateMatched.Equal(testNow))
	assert.Equal(t, "for a", aSide[0].Rationale)
	assert.Equal(t, "for b", bSide[0].Rationale)
}

func TestRunSkipsPairsOverQuota(t *testing.T) {
	st := newFixtureStore([]string{"hub", "p1", "p2", "p3", "p4"}, nil)
	oracle := newFakeOracle().
		rate("hub", "p1", 10).
		rate("hub", "p2", 9).
		rate("hub", "p3", 9).
		rate("hub", "p4", 8)

	result, err := newTestRunner(st, oracle).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 3, result.NewMatchCount)
	assert.Equal(t, 1, result.Summary.Skipped)
	assert.Equal(t, []string{"p1", "p2", "p3"}, counterparts(storedMatches(t, st, "hub")))
	assert.Empty(t, storedMatches(t, st, "p4"))
}

func TestRunHonoursRecencyWindow(t *testing.T) {
	existing := map[string]*models.StoredMatches{
		"a": {Matches: []models.RecordedMatch{
			{UserID: "b", DateMatched: daysAgo(2), CompatibilityRating: 9},
			{UserID: "c", DateMatched: daysAgo(10), CompatibilityRating: 8},
		}},
		"b": {Matches: []models.RecordedMatch{{UserID: "a", DateMatched: daysAgo(2), CompatibilityRating: 9}}},
	}
	st := newFixtureStore([]string{"a", "b", "c"}, existing)
	oracle := newFakeOracle().rate("a", "b", 10).rate("a", "c", 9)

	result, err := newTestRunner(st, oracle).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, result.NewMatchCount)

	aSide := storedMatches(t, st, "a")
	require.Len(t, aSide, 2)
	assert.Equal(t, "b", aSide[0].UserID)
	assert.True(t, aSide[0].DateMatched.Equal(daysAgo(2)))
	assert.Equal(t, "c", aSide[1].UserID)
	assert.True(t, aSide[1].DateMatched.Equal(testNow))

	assert.Len(t, storedMatches(t, st, "b"), 1)
}

func TestRunSurvivesOracleFailures(t *testing.T) {
	st := newFixtureStore([]string{"a", "b", "c", "d"}, nil)
	oracle := newFakeOracle().rate("a", "b", 9).rate("c", "d", 9)
	oracle.fail[models.CanonicalMatchID("a", "c")] = errOracleDown

	result, err := newTestRunner(st, oracle).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 2, result.NewMatchCount)
	assert.Equal(t, []string{"b"}, counterparts(storedMatches(t, st, "a")))
	assert.Equal(t, []string{"d"}, counterparts(storedMatches(t, st, "c")))
}

func TestRunWithEmptyPool(t *testing.T) {
	st := newFixtureStore([]string{"a", "b"}, nil)
	oracle := newFakeOracle().rate("a", "b", 5)

	result, err := newTestRunner(st, oracle).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, MessageNoMatches, result.Message)
	assert.Zero(t, result.NewMatchCount)

	stored, err := st.Matches(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, stored.LastUpdated)

	status, err := st.MatchmakingStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, status.Status)
	require.NotNil(t, status.LastFinished)
}

type failingProfiles struct {
	*memory.Store
}

func (failingProfiles) AllProfiles(context.Context) ([]*models.Profile, error) {
	return nil, errors.New("scan failed")
}

type panickingSaves struct {
	*memory.Store
}

func (panickingSaves) BatchSaveMatches(context.Context, map[string][]models.RecordedMatch) error {
	panic("write exploded")
}

func TestRunResetsStatusOnFailure(t *testing.T) {
	inner := newFixtureStore([]string{"a", "b"}, nil)
	st := failingProfiles{inner}
	r := NewRunner(st, newTestDiscoverer(newFakeOracle(), inner), WithClock(fixedClock))

	_, err := r.Run(context.Background(), "")
	require.Error(t, err)

	status, err := inner.MatchmakingStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.InProgress())
	require.NotNil(t, status.LastStarted)
	require.NotNil(t, status.LastFinished)
}

func TestRunResetsStatusOnPanic(t *testing.T) {
	inner := newFixtureStore([]string{"a", "b"}, nil)
	st := panickingSaves{inner}
	oracle := newFakeOracle().rate("a", "b", 9)
	r := NewRunner(st, newTestDiscoverer(oracle, inner), WithClock(fixedClock))

	assert.Panics(t, func() { _, _ = r.Run(context.Background(), "") })

	status, err := inner.MatchmakingStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.InProgress())
}

func TestSingleUserRun(t *testing.T) {
	existing := map[string]*models.StoredMatches{
		"u": {Matches: []models.RecordedMatch{
			{UserID: "x", DateMatched: testNow.Add(-2 * time.Hour)},
			{UserID: "y", DateMatched: testNow.Add(-3 * time.Hour)},
		}},
		"p1": {Matches: []models.RecordedMatch{{UserID: "z", DateMatched: daysAgo(1)}}},
	}
	st := newFixtureStore([]string{"u", "x", "y", "z", "p1", "p2"}, existing)
	oracle := newFakeOracle().
		rate("u", "p1", 10).
		rate("u", "p2", 9).
		rate("u", "x", 10)

	result, err := newTestRunner(st, oracle).Run(context.Background(), "u")

	require.NoError(t, err)
	assert.Equal(t, 1, result.NewMatchCount)
	assert.Equal(t, ModeSingleUser, result.Summary.Mode)
	assert.Equal(t, []string{"x", "y", "p1"}, counterparts(storedMatches(t, st, "u")))
	assert.Equal(t, []string{"z", "u"}, counterparts(storedMatches(t, st, "p1")))
	assert.Empty(t, storedMatches(t, st, "p2"))

	status, err := st.MatchmakingStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.LastStarted, "single user runs must not touch the status")
}

func TestSingleUserRunUnknownUser(t *testing.T) {
	st := newFixtureStore([]string{"a"}, nil)

	_, err := newTestRunner(st, newFakeOracle()).Run(context.Background(), "ghost")

	require.Error(t, err)
}

type fakeLocker struct {
	err      error
	acquired int
	released int
}

func (l *fakeLocker) Acquire(context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func TestRunRejectsConcurrentFullRun(t *testing.T) {
	st := newFixtureStore([]string{"a", "b"}, nil)
	locker := &fakeLocker{err: lock.ErrLocked}

	_, err := newTestRunner(st, newFakeOracle(), WithLocker(locker)).Run(context.Background(), "")

	assert.ErrorIs(t, err, ErrRunInProgress)

	status, statusErr := st.MatchmakingStatus(context.Background())
	require.NoError(t, statusErr)
	assert.Nil(t, status.LastStarted)
}

func TestRunReleasesLock(t *testing.T) {
	st := newFixtureStore([]string{"a", "b"}, nil)
	locker := &fakeLocker{}

	_, err := newTestRunner(st, newFakeOracle().rate("a", "b", 9), WithLocker(locker)).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestDryRunPersistsNothing(t *testing.T) {
	st := newFixtureStore([]string{"a", "b"}, nil)
	locker := &fakeLocker{}

	result, err := newTestRunner(st, newFakeOracle().rate("a", "b", 9), WithDryRun(true), WithLocker(locker)).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, "Dry run: 1 new matches would be created", result.Message)
	assert.True(t, result.Summary.DryRun)
	assert.Empty(t, storedMatches(t, st, "a"))
	assert.Zero(t, locker.acquired)

	status, err := st.MatchmakingStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.LastStarted)
}

func TestConfirmCanCancel(t *testing.T) {
	st := newFixtureStore([]string{"a", "b"}, nil)
	var asked *Summary
	confirm := func(_ context.Context, s *Summary) (bool, error) {
		asked = s
		return false, nil
	}

	result, err := newTestRunner(st, newFakeOracle().rate("a", "b", 9), WithConfirm(confirm)).Run(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, MessageCancelled, result.Message)
	require.NotNil(t, asked)
	assert.Equal(t, 1, asked.Committed)
	assert.Empty(t, storedMatches(t, st, "a"))
}

type recordingPublisher struct {
	runID string
	edges []Edge
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, runID string, edges []Edge, _ time.Time) error {
	p.runID = runID
	p.edges = edges
	return p.err
}

type recordingReporter struct {
	summaries []*Summary
}

func (r *recordingReporter) Report(_ context.Context, s *Summary) error {
	r.summaries = append(r.summaries, s)
	return errors.New("bucket missing")
}

func TestRunPublishesAndReports(t *testing.T) {
	st := newFixtureStore([]string{"a", "b", "c"}, nil)
	oracle := newFakeOracle().rate("a", "b", 10).rate("b", "c", 8)
	publisher := &recordingPublisher{err: errors.New("broker down")}
	reporter := &recordingReporter{}

	result, err := newTestRunner(st, oracle, WithPublisher(publisher), WithReporter(reporter)).Run(context.Background(), "")

	require.NoError(t, err, "publish and report failures must not fail the run")
	assert.Equal(t, 2, result.NewMatchCount)

	assert.Equal(t, "run-1", publisher.runID)
	require.Len(t, publisher.edges, 2)
	assert.Equal(t, "a_b", publisher.edges[0].ID())

	require.Len(t, reporter.summaries, 1)
	summary := reporter.summaries[0]
	assert.Equal(t, ModeFull, summary.Mode)
	assert.Equal(t, 3, summary.Population)
	assert.Equal(t, 2, summary.Committed)
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 1}, summary.PerUser)
}
