package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/models"
)

// ErrScoringFailed wraps every per-pair scoring failure.
var ErrScoringFailed = errors.New("scoring failed")

// MissingPersonaRationale is used on both sides when a persona is absent and the oracle is skipped.
const MissingPersonaRationale = "Not enough information to consider match"

const (
	DefaultWorkers = 4
	personaWait    = 5 * time.Millisecond
)

// PersonaSource loads personas in batches.
type PersonaSource interface {
	Personas(ctx context.Context, ids []string) (map[string]*models.Persona, error)
}

// PairScorer adapts the compatibility oracle: it resolves personas, short-circuits pairs
// without them and isolates failures so one bad pair never affects the others.
type PairScorer struct {
	oracle  ai.Scorer
	loader  *dataloader.Loader[string, *models.Persona]
	workers int
	logger  *zap.Logger
}

func NewPairScorer(oracle ai.Scorer, personas PersonaSource, workers int, logger *zap.Logger) *PairScorer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PairScorer{
		oracle:  oracle,
		loader:  dataloader.NewBatchedLoader(personaBatchFn(personas), dataloader.WithWait[string, *models.Persona](personaWait)),
		workers: workers,
		logger:  logger,
	}
}

// personaBatchFn returns a nil persona without error for users that have none.
func personaBatchFn(source PersonaSource) dataloader.BatchFunc[string, *models.Persona] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*models.Persona] {
		results := make([]*dataloader.Result[*models.Persona], len(keys))

		found, err := source.Personas(ctx, keys)
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*models.Persona]{Error: err}
				continue
			}
			results[i] = &dataloader.Result[*models.Persona]{Data: found[key]}
		}
		return results
	}
}

// ClearCache forgets personas loaded by earlier runs.
func (s *PairScorer) ClearCache() {
	s.loader.ClearAll()
}

// Score rates one pair. Rationale1 of the result is addressed to subject.
func (s *PairScorer) Score(ctx context.Context, subject, candidate *models.Profile) (*models.MatchResult, error) {
	subjectThunk := s.loader.Load(ctx, subject.UserID)
	candidateThunk := s.loader.Load(ctx, candidate.UserID)

	subjectPersona, err := subjectThunk()
	if err != nil {
		return nil, fmt.Errorf("%w: loading persona of %s: %w", ErrScoringFailed, subject.UserID, err)
	}
	candidatePersona, err := candidateThunk()
	if err != nil {
		return nil, fmt.Errorf("%w: loading persona of %s: %w", ErrScoringFailed, candidate.UserID, err)
	}

	if subjectPersona == nil || candidatePersona == nil {
		return &models.MatchResult{
			CompatibilityRating: 0,
			Rationale1:          MissingPersonaRationale,
			Rationale2:          MissingPersonaRationale,
		}, nil
	}

	result, err := s.oracle.ScorePair(ctx, subject, subjectPersona, candidate, candidatePersona)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoringFailed, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrScoringFailed)
	}

	return result, nil
}

// ScoreAll rates subject against every candidate with bounded concurrency.
// Failed pairs are logged and left out. The returned prospects keep the candidates' order.
func (s *PairScorer) ScoreAll(ctx context.Context, subject *models.Profile, candidates []*models.Profile) []Prospect {
	results := make([]*models.MatchResult, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, candidate := range candidates {
		g.Go(func() error {
			result, err := s.safeScore(ctx, subject, candidate)
			if err != nil {
				s.logger.Warn("pair scoring failed",
					zap.String("user_id", subject.UserID),
					zap.String("candidate_id", candidate.UserID),
					zap.Error(err),
				)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	prospects := make([]Prospect, 0, len(candidates))
	for i, result := range results {
		if result == nil {
			continue
		}
		prospects = append(prospects, Prospect{Candidate: candidates[i], Result: *result})
	}
	return prospects
}

func (s *PairScorer) safeScore(ctx context.Context, subject, candidate *models.Profile) (result *models.MatchResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("%w: panic: %v", ErrScoringFailed, p)
		}
	}()

	return s.Score(ctx, subject, candidate)
}
