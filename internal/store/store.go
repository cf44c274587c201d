// Package store defines the persistence boundary of the matchmaking engine.
package store

import (
	"context"
	"errors"

	"github.com/spigell/matchmaker/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type Profiles interface {
	AllProfiles(ctx context.Context) ([]*models.Profile, error)
	// Profile returns ErrNotFound when the user has no profile.
	Profile(ctx context.Context, userID string) (*models.Profile, error)
}

type Matches interface {
	// Matches returns an empty record when the user has no stored matches.
	Matches(ctx context.Context, userID string) (*models.StoredMatches, error)
	SaveMatches(ctx context.Context, userID string, matches []models.RecordedMatch, updateTimestamp bool) error
	// BatchSaveMatches replaces the match lists of every user in the map in one atomic write
	// and stamps them with the write time.
	BatchSaveMatches(ctx context.Context, matches map[string][]models.RecordedMatch) error
}

type Status interface {
	// MatchmakingStatus returns the default DONE status when none was stored.
	MatchmakingStatus(ctx context.Context) (*models.MatchmakingStatus, error)
	SaveMatchmakingStatus(ctx context.Context, status *models.MatchmakingStatus) error
}

type Personas interface {
	// Personas returns the personas that exist for ids, keyed by user id.
	Personas(ctx context.Context, ids []string) (map[string]*models.Persona, error)
	SavePersona(ctx context.Context, persona *models.Persona) error
}

type Store interface {
	Profiles
	Matches
	Status
	Personas
	Close() error
}
