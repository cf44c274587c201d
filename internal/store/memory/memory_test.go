package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store"
)

const fixtureYAML = `
profiles:
  - user_id: u1
    name: Alice
    dob: 01/01/1995
    gender: female
    orientation: [male]
    age_range: [25, 40]
    location:
      latitude: 51.5
      longitude: -0.12
      consent: true
      name: London
    distance_range_km: 50
  - user_id: u2
    name: Bob
    gender: male
personas:
  - user_id: u1
    description: Loves hiking
matches:
  u1:
    matches:
      - user_id: u3
        rationale: hi
        compatibility_rating: 9
        highlighted_themes: [Values & Beliefs]
        date_matched: 2026-03-10T10:00:00Z
status:
  status: IN_PROGRESS
`

func writeFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))
	return path
}

func TestLoadFixture(t *testing.T) {
	s, err := Load(writeFixture(t))
	require.NoError(t, err)

	ctx := context.Background()

	profiles, err := s.AllProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "u1", profiles[0].UserID)
	assert.Equal(t, "u2", profiles[1].UserID)
	require.NotNil(t, profiles[0].AgeRange)
	assert.Equal(t, models.AgeRange{25, 40}, *profiles[0].AgeRange)
	require.NotNil(t, profiles[0].DistanceRangeKm)
	assert.Equal(t, 50, *profiles[0].DistanceRangeKm)
	assert.True(t, profiles[0].Location.Usable())

	_, err = s.Profile(ctx, "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	stored, err := s.Matches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored.Matches, 1)
	assert.Equal(t, time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC), stored.Matches[0].DateMatched.UTC())

	empty, err := s.Matches(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, empty.Matches)
	assert.Nil(t, empty.LastUpdated)

	status, err := s.MatchmakingStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.InProgress())

	personas, err := s.Personas(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, personas, 1)
	assert.Equal(t, "Loves hiking", personas["u1"].Description)
}

func TestDefaultStatus(t *testing.T) {
	s := New(nil)

	status, err := s.MatchmakingStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, status.Status)
}

func TestBatchSaveStampsAndWritesBack(t *testing.T) {
	path := writeFixture(t)
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	s, err := Load(path, WithClock(func() time.Time { return now }), WithWriteBack(path))
	require.NoError(t, err)

	ctx := context.Background()
	first, second := models.NewRecordedMatches("u1", "u2", models.MatchResult{CompatibilityRating: 8}, now)
	require.NoError(t, s.BatchSaveMatches(ctx, map[string][]models.RecordedMatch{
		"u1": {first},
		"u2": {second},
	}))

	reloaded, err := Load(path)
	require.NoError(t, err)

	for _, id := range []string{"u1", "u2"} {
		stored, err := reloaded.Matches(ctx, id)
		require.NoError(t, err)
		require.Len(t, stored.Matches, 1)
		require.NotNil(t, stored.LastUpdated)
		assert.True(t, stored.LastUpdated.Equal(now))
	}
}

func TestSaveMatchesKeepsTimestampWhenNotUpdating(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	s := New(nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.SaveMatches(ctx, "u1", nil, true))
	later := now.Add(time.Hour)
	s.now = func() time.Time { return later }
	require.NoError(t, s.SaveMatches(ctx, "u1", []models.RecordedMatch{{UserID: "u2"}}, false))

	stored, err := s.Matches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored.Matches, 1)
	assert.True(t, stored.LastUpdated.Equal(now))
}
