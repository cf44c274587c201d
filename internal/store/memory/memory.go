// Package memory keeps the whole data set in process memory, optionally backed by a YAML file.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store"
)

// Fixture is the on-disk layout of the store.
type Fixture struct {
	Profiles []*models.Profile                `yaml:"profiles"`
	Personas []*models.Persona                `yaml:"personas,omitempty"`
	Matches  map[string]*models.StoredMatches `yaml:"matches,omitempty"`
	Status   *models.MatchmakingStatus        `yaml:"status,omitempty"`
}

type Store struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
	order    []string
	personas map[string]*models.Persona
	matches  map[string]*models.StoredMatches
	status   *models.MatchmakingStatus

	// path is rewritten after every mutation when set.
	path string
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithClock sets the clock used to stamp saved matches.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithWriteBack persists every change to path.
func WithWriteBack(path string) Option {
	return func(s *Store) { s.path = path }
}

func New(fixture *Fixture, opts ...Option) *Store {
	s := &Store{
		profiles: map[string]*models.Profile{},
		personas: map[string]*models.Persona{},
		matches:  map[string]*models.StoredMatches{},
		now:      time.Now,
	}

	if fixture != nil {
		for _, p := range fixture.Profiles {
			if p == nil {
				continue
			}
			if _, seen := s.profiles[p.UserID]; !seen {
				s.order = append(s.order, p.UserID)
			}
			s.profiles[p.UserID] = p
		}
		for _, p := range fixture.Personas {
			if p != nil {
				s.personas[p.UserID] = p
			}
		}
		for id, m := range fixture.Matches {
			if m != nil {
				s.matches[id] = m
			}
		}
		s.status = fixture.Status
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load reads a YAML fixture file.
func Load(path string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("decoding fixture %s: %w", path, err)
	}

	return New(&fixture, opts...), nil
}

func (s *Store) AllProfiles(_ context.Context) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]*models.Profile, 0, len(s.order))
	for _, id := range s.order {
		profiles = append(profiles, s.profiles[id])
	}
	return profiles, nil
}

func (s *Store) Profile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, store.ErrNotFound)
	}
	return p, nil
}

func (s *Store) Matches(_ context.Context, userID string) (*models.StoredMatches, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.matches[userID]
	if !ok {
		return &models.StoredMatches{}, nil
	}

	out := *stored
	out.Matches = append([]models.RecordedMatch(nil), stored.Matches...)
	return &out, nil
}

func (s *Store) SaveMatches(_ context.Context, userID string, matches []models.RecordedMatch, updateTimestamp bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putMatches(userID, matches, updateTimestamp, s.now())
	return s.flush()
}

func (s *Store) BatchSaveMatches(_ context.Context, matches map[string][]models.RecordedMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, list := range matches {
		s.putMatches(userID, list, true, now)
	}
	return s.flush()
}

func (s *Store) putMatches(userID string, matches []models.RecordedMatch, updateTimestamp bool, now time.Time) {
	stored := &models.StoredMatches{Matches: append([]models.RecordedMatch(nil), matches...)}
	if prev, ok := s.matches[userID]; ok {
		stored.LastUpdated = prev.LastUpdated
	}
	if updateTimestamp {
		stored.LastUpdated = &now
	}
	s.matches[userID] = stored
}

func (s *Store) MatchmakingStatus(_ context.Context) (*models.MatchmakingStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status == nil {
		return models.DefaultStatus(), nil
	}
	status := *s.status
	return &status, nil
}

func (s *Store) SaveMatchmakingStatus(_ context.Context, status *models.MatchmakingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *status
	s.status = &saved
	return s.flush()
}

func (s *Store) Personas(_ context.Context, ids []string) (map[string]*models.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]*models.Persona, len(ids))
	for _, id := range ids {
		if p, ok := s.personas[id]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (s *Store) SavePersona(_ context.Context, persona *models.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.personas[persona.UserID] = persona
	return s.flush()
}

func (s *Store) Close() error { return nil }

func (s *Store) snapshot() *Fixture {
	fixture := &Fixture{
		Matches: make(map[string]*models.StoredMatches, len(s.matches)),
		Status:  s.status,
	}
	for _, id := range s.order {
		fixture.Profiles = append(fixture.Profiles, s.profiles[id])
	}

	personaIDs := make([]string, 0, len(s.personas))
	for id := range s.personas {
		personaIDs = append(personaIDs, id)
	}
	sort.Strings(personaIDs)
	for _, id := range personaIDs {
		fixture.Personas = append(fixture.Personas, s.personas[id])
	}

	for id, m := range s.matches {
		fixture.Matches[id] = m
	}
	return fixture
}

// flush must be called with the write lock held.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}

	data, err := yaml.Marshal(s.snapshot())
	if err != nil {
		return fmt.Errorf("encoding fixture: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing fixture: %w", err)
	}
	return nil
}
