package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/models"
)

// Filter represents a single filtering step applied to the candidates of a subject profile.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, subject *models.Profile, candidates []*models.Profile) ([]*models.Profile, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Filtering runs the configured steps in order. Every step preserves the relative order
// of the candidates it keeps.
type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Filtering{steps: steps, logger: logger}
}

// Validate checks every enabled step once before the filters are used.
func (f *Filtering) Validate() error {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	return nil
}

// DisableByName marks filters with the provided names as disabled while keeping them in the list.
func (f *Filtering) DisableByName(names []string, reason string) {
	for _, name := range names {
		for _, step := range f.steps {
			if step.Name() == name {
				step.Disable(reason)
			}
		}
	}
}

// RunFilters returns the candidates that pass every enabled step for the subject.
// The input slice is not modified.
func (f *Filtering) RunFilters(ctx context.Context, subject *models.Profile, candidates []*models.Profile) ([]*models.Profile, error) {
	left := append([]*models.Profile(nil), candidates...)

	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}

		next, info, err := step.Apply(ctx, subject, left)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if info.Dropped > 0 {
			f.logger.Debug("filter step",
				zap.String("user_id", subject.UserID),
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		left = next
	}

	return left, nil
}

// Describe returns status entries for the configured filters.
func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.steps))
	for _, step := range f.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the candidates accepted by fn, in their original order.
func keep(candidates []*models.Profile, fn func(*models.Profile) bool) ([]*models.Profile, Step) {
	kept := make([]*models.Profile, 0, len(candidates))
	for _, c := range candidates {
		if fn(c) {
			kept = append(kept, c)
		}
	}

	return kept, Step{Initial: len(candidates), Dropped: len(candidates) - len(kept), Left: len(kept)}
}
