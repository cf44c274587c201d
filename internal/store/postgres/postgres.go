// Package postgres stores the matchmaking data set as JSONB documents in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

const statusID = "matchmaking"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects with the pgx driver and checks the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// gooseUpContext is replaced in tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) AllProfiles(ctx context.Context) ([]*models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		var p models.Profile
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return profiles, nil
}

func (s *Store) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM profiles WHERE user_id = $1`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	var p models.Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// SaveProfile upserts a profile document.
func (s *Store) SaveProfile(ctx context.Context, profile *models.Profile) error {
	doc, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, doc) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc`,
		profile.UserID, doc)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Matches(ctx context.Context, userID string) (*models.StoredMatches, error) {
	var (
		doc         []byte
		lastUpdated sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `SELECT matches, last_updated FROM matches WHERE user_id = $1`, userID).
		Scan(&doc, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.StoredMatches{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	stored := &models.StoredMatches{}
	if err := json.Unmarshal(doc, &stored.Matches); err != nil {
		return nil, fmt.Errorf("decode matches: %w", err)
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		stored.LastUpdated = &t
	}
	return stored, nil
}

func (s *Store) SaveMatches(ctx context.Context, userID string, matches []models.RecordedMatch, updateTimestamp bool) error {
	doc, err := encodeMatches(matches)
	if err != nil {
		return err
	}

	if updateTimestamp {
		return upsertMatches(ctx, s.db, userID, doc, s.now())
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO matches (user_id, matches) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET matches = EXCLUDED.matches`,
		userID, doc)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) BatchSaveMatches(ctx context.Context, matches map[string][]models.RecordedMatch) error {
	now := s.now()

	// rows are written in key order so concurrent batches lock them in the same order
	userIDs := slices.Sorted(maps.Keys(matches))

	docs := make([][]byte, len(userIDs))
	for i, userID := range userIDs {
		doc, err := encodeMatches(matches[userID])
		if err != nil {
			return err
		}
		docs[i] = doc
	}

	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		for i, userID := range userIDs {
			if err := upsertMatches(ctx, tx, userID, docs[i], now); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertMatches(ctx context.Context, db DBTX, userID string, doc []byte, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO matches (user_id, matches, last_updated) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET matches = EXCLUDED.matches, last_updated = EXCLUDED.last_updated`,
		userID, doc, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func encodeMatches(matches []models.RecordedMatch) ([]byte, error) {
	if matches == nil {
		matches = []models.RecordedMatch{}
	}
	doc, err := json.Marshal(matches)
	if err != nil {
		return nil, fmt.Errorf("encode matches: %w", err)
	}
	return doc, nil
}

func (s *Store) MatchmakingStatus(ctx context.Context) (*models.MatchmakingStatus, error) {
	var (
		state                  string
		lastStarted, lastEnded sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, last_started, last_finished FROM matchmaking_status WHERE id = $1`, statusID).
		Scan(&state, &lastStarted, &lastEnded)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultStatus(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	status := &models.MatchmakingStatus{Status: models.RunState(state)}
	if lastStarted.Valid {
		t := lastStarted.Time
		status.LastStarted = &t
	}
	if lastEnded.Valid {
		t := lastEnded.Time
		status.LastFinished = &t
	}
	return status, nil
}

func (s *Store) SaveMatchmakingStatus(ctx context.Context, status *models.MatchmakingStatus) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matchmaking_status (id, status, last_started, last_finished) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, last_started = EXCLUDED.last_started, last_finished = EXCLUDED.last_finished`,
		statusID, string(status.Status), nullTime(status.LastStarted), nullTime(status.LastFinished))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *Store) Personas(ctx context.Context, ids []string) (map[string]*models.Persona, error) {
	found := make(map[string]*models.Persona, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM personas WHERE user_id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		var p models.Persona
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode persona: %w", err)
		}
		found[p.UserID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return found, nil
}

func (s *Store) SavePersona(ctx context.Context, persona *models.Persona) error {
	doc, err := json.Marshal(persona)
	if err != nil {
		return fmt.Errorf("encode persona: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO personas (user_id, doc) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc`,
		persona.UserID, doc)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
