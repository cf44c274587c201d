package matchmaking

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/models"
)

const (
	DefaultSubsetSize = 20
	DefaultMinRating  = 8
)

// Prospect is a scored candidate for one subject.
type Prospect struct {
	Candidate *models.Profile
	Result    models.MatchResult
}

type prospectScorer interface {
	ScoreAll(ctx context.Context, subject *models.Profile, candidates []*models.Profile) []Prospect
}

// Discoverer builds the ranked shortlist of one subject.
type Discoverer struct {
	filters    *filtering.Filtering
	scorer     prospectScorer
	subsetSize int
	minRating  int
	logger     *zap.Logger
}

func NewDiscoverer(filters *filtering.Filtering, scorer prospectScorer, subsetSize, minRating int, logger *zap.Logger) *Discoverer {
	if subsetSize <= 0 {
		subsetSize = DefaultSubsetSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Discoverer{
		filters:    filters,
		scorer:     scorer,
		subsetSize: subsetSize,
		minRating:  minRating,
		logger:     logger,
	}
}

// FindProspects filters the population, keeps the first subset of survivors that are not
// already matched with subject, scores them and returns those at or above the minimum rating,
// best first. Candidates with equal ratings keep their population order.
func (d *Discoverer) FindProspects(ctx context.Context, subject *models.Profile, population []*models.Profile, index DedupIndex) ([]Prospect, error) {
	eligible, err := d.filters.RunFilters(ctx, subject, population)
	if err != nil {
		return nil, fmt.Errorf("filtering candidates of %s: %w", subject.UserID, err)
	}

	subset := eligible[:min(len(eligible), d.subsetSize)]

	fresh := make([]*models.Profile, 0, len(subset))
	for _, c := range subset {
		if index.Contains(subject.UserID, c.UserID) {
			continue
		}
		fresh = append(fresh, c)
	}

	scored := d.scorer.ScoreAll(ctx, subject, fresh)

	shortlist := make([]Prospect, 0, len(scored))
	for _, p := range scored {
		if p.Result.CompatibilityRating >= d.minRating {
			shortlist = append(shortlist, p)
		}
	}

	sort.SliceStable(shortlist, func(i, j int) bool {
		return shortlist[i].Result.CompatibilityRating > shortlist[j].Result.CompatibilityRating
	})

	fields := []zap.Field{
		zap.String("user_id", subject.UserID),
		zap.Int("eligible", len(eligible)),
		zap.Int("already_matched", len(subset)-len(fresh)),
		zap.Int("scored", len(scored)),
		zap.Int("shortlisted", len(shortlist)),
	}
	if len(shortlist) == 0 {
		d.logger.Info("no prospects found", fields...)
	} else {
		d.logger.Debug("prospects found", fields...)
	}

	return shortlist, nil
}

// Reset drops per-run caches of the scorer.
func (d *Discoverer) Reset() {
	if c, ok := d.scorer.(interface{ ClearCache() }); ok {
		c.ClearCache()
	}
}
