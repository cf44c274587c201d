package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/lock"
	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/store"
)

// ErrRunInProgress is returned when another full-population run holds the run lock.
var ErrRunInProgress = errors.New("matchmaking run already in progress")

const (
	MessageNoMatches = "No matches found"
	MessageCancelled = "Run cancelled, no matches were saved"

	// recentPeriod is the trailing period whose matches count against a single user's quota.
	recentPeriod = 24 * time.Hour

	ModeFull       = "full"
	ModeSingleUser = "single_user"
)

type Store interface {
	store.Profiles
	store.Matches
	store.Status
}

// Locker provides single-flight execution of full-population runs.
// Acquire returns lock.ErrLocked when another holder owns the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Publisher announces committed pairs after they were saved.
type Publisher interface {
	Publish(ctx context.Context, runID string, edges []Edge, createdAt time.Time) error
}

// Reporter receives the summary of every finished run.
type Reporter interface {
	Report(ctx context.Context, summary *Summary) error
}

// ConfirmFunc is asked before anything is persisted. Returning false cancels the run.
type ConfirmFunc func(ctx context.Context, summary *Summary) (bool, error)

type PairSummary struct {
	Users  [2]string `json:"users"`
	Rating int       `json:"rating"`
	Themes []string  `json:"themes,omitempty"`
}

// Summary describes one run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Mode       string         `json:"mode"`
	UserID     string         `json:"user_id,omitempty"`
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   string         `json:"duration"`
	Population int            `json:"population"`
	Targets    int            `json:"targets"`
	PoolSize   int            `json:"pool_size"`
	Committed  int            `json:"committed"`
	Skipped    int            `json:"skipped"`
	PerUser    map[string]int `json:"per_user,omitempty"`
	Pairs      []PairSummary  `json:"pairs,omitempty"`
}

type Result struct {
	Message       string
	NewMatchCount int
	RunID         string
	Summary       *Summary
}

// Runner orchestrates a matchmaking run: discovery for every target, global allocation and
// the final batch write.
type Runner struct {
	store      Store
	discoverer *Discoverer

	quota     int
	window    time.Duration
	now       func() time.Time
	newID     func() string
	locker    Locker
	publisher Publisher
	reporter  Reporter
	confirm   ConfirmFunc
	dryRun    bool
	logger    *zap.Logger
}

type Option func(*Runner)

func WithQuota(n int) Option { return func(r *Runner) { r.quota = n } }

func WithRecencyWindow(d time.Duration) Option { return func(r *Runner) { r.window = d } }

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func WithIDGenerator(fn func() string) Option { return func(r *Runner) { r.newID = fn } }

func WithLocker(l Locker) Option { return func(r *Runner) { r.locker = l } }

func WithPublisher(p Publisher) Option { return func(r *Runner) { r.publisher = p } }

func WithReporter(rep Reporter) Option { return func(r *Runner) { r.reporter = rep } }

func WithConfirm(fn ConfirmFunc) Option { return func(r *Runner) { r.confirm = fn } }

// WithDryRun makes the runner stop after allocation: nothing is saved or published.
func WithDryRun(dry bool) Option { return func(r *Runner) { r.dryRun = dry } }

func WithLogger(l *zap.Logger) Option { return func(r *Runner) { r.logger = l } }

func NewRunner(st Store, discoverer *Discoverer, opts ...Option) *Runner {
	r := &Runner{
		store:      st,
		discoverer: discoverer,
		quota:      DefaultQuota,
		window:     DefaultRecencyWindow,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Run executes one matchmaking run. An empty userID runs over the whole population and
// drives the persisted status; otherwise only that user is a target.
func (r *Runner) Run(ctx context.Context, userID string) (*Result, error) {
	runID := r.newID()
	log := logger.WithRunFields(r.logger, runID, userID)

	summary := &Summary{
		RunID:     runID,
		Mode:      ModeFull,
		UserID:    userID,
		DryRun:    r.dryRun,
		StartedAt: r.now(),
	}
	if userID != "" {
		summary.Mode = ModeSingleUser
	}

	if userID == "" && !r.dryRun {
		release, err := r.begin(ctx, log)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	r.discoverer.Reset()

	log.Info("matchmaking run started")

	result, err := r.run(ctx, userID, summary, log)

	summary.FinishedAt = r.now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt).String()

	if err != nil {
		log.Error("matchmaking run failed", zap.Error(err))
		return nil, err
	}

	r.report(ctx, summary, log)

	log.Info("matchmaking run finished",
		zap.String("message", result.Message),
		zap.Int("new_matches", result.NewMatchCount),
		zap.String("duration", summary.Duration),
	)

	return result, nil
}

// begin takes the run lock and marks the shared status as in progress. The returned func
// restores the DONE status and releases the lock; it runs even when the run panics.
func (r *Runner) begin(ctx context.Context, log *zap.Logger) (func(), error) {
	releaseLock := func(context.Context) error { return nil }
	if r.locker != nil {
		release, err := r.locker.Acquire(ctx)
		if errors.Is(err, lock.ErrLocked) {
			return nil, fmt.Errorf("%w: %w", ErrRunInProgress, err)
		}
		if err != nil {
			return nil, fmt.Errorf("acquiring run lock: %w", err)
		}
		releaseLock = release
	}

	status, err := r.store.MatchmakingStatus(ctx)
	if err != nil {
		_ = releaseLock(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("loading matchmaking status: %w", err)
	}
	if status.InProgress() {
		log.Warn("previous matchmaking run did not finish", zap.Timep("last_started", status.LastStarted))
	}

	status.Start(r.now())
	if err := r.store.SaveMatchmakingStatus(ctx, status); err != nil {
		_ = releaseLock(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("saving matchmaking status: %w", err)
	}

	return func() {
		cleanup := context.WithoutCancel(ctx)

		status.Stop(r.now())
		if err := r.store.SaveMatchmakingStatus(cleanup, status); err != nil {
			log.Error("failed to reset matchmaking status", zap.Error(err))
		}
		if err := releaseLock(cleanup); err != nil {
			log.Warn("failed to release run lock", zap.Error(err))
		}
	}, nil
}

func (r *Runner) run(ctx context.Context, userID string, summary *Summary, log *zap.Logger) (*Result, error) {
	now := summary.StartedAt

	population, err := r.store.AllProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	summary.Population = len(population)

	targets := population
	if userID != "" {
		target, err := r.store.Profile(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		targets = []*models.Profile{target}
	}
	summary.Targets = len(targets)

	existing := make(map[string][]models.RecordedMatch, len(targets))
	for _, t := range targets {
		valid, err := r.validMatches(ctx, t.UserID, now)
		if err != nil {
			return nil, err
		}
		existing[t.UserID] = valid
	}

	index := BuildDedupIndex(existing)
	log.Debug("existing matches indexed", zap.Int("pairs", len(index)))

	seed := map[string]int{}
	if userID != "" {
		for _, m := range existing[userID] {
			if m.CreatedWithin(now, recentPeriod) {
				seed[userID]++
			}
		}
	}

	pool := NewPool()
	for _, t := range targets {
		prospects, err := r.discoverer.FindProspects(ctx, t, population, index)
		if err != nil {
			return nil, err
		}
		pool.Add(t.UserID, prospects)
	}
	summary.PoolSize = pool.Len()

	if pool.Len() == 0 {
		log.Info("no matches found")
		return &Result{Message: MessageNoMatches, RunID: summary.RunID, Summary: summary}, nil
	}

	alloc := Allocate(pool, r.quota, seed, now)
	summarizeAllocation(summary, alloc)

	log.Info("allocation finished",
		zap.Int("pool", pool.Len()),
		zap.Int("committed", len(alloc.Committed)),
		zap.Int("skipped", len(alloc.Skipped)),
		zap.Int("max_rating", pool.MaxRating()),
	)

	count := len(alloc.Committed)
	result := &Result{
		Message:       fmt.Sprintf("Successfully created %d new matches", count),
		NewMatchCount: count,
		RunID:         summary.RunID,
		Summary:       summary,
	}

	if r.dryRun {
		result.Message = fmt.Sprintf("Dry run: %d new matches would be created", count)
		return result, nil
	}

	if r.confirm != nil {
		ok, err := r.confirm(ctx, summary)
		if err != nil {
			return nil, fmt.Errorf("confirming run: %w", err)
		}
		if !ok {
			return &Result{Message: MessageCancelled, RunID: summary.RunID, Summary: summary}, nil
		}
	}

	updates, err := r.mergeUpdates(ctx, existing, alloc, now)
	if err != nil {
		return nil, err
	}

	log.Info("saving matches", zap.Int("new_matches", count), zap.Int("users", len(updates)))
	if err := r.store.BatchSaveMatches(ctx, updates); err != nil {
		return nil, fmt.Errorf("saving matches: %w", err)
	}

	if r.publisher != nil && count > 0 {
		if err := r.publisher.Publish(ctx, summary.RunID, alloc.Committed, now); err != nil {
			log.Warn("failed to publish match events", zap.Error(err))
		}
	}

	return result, nil
}

func (r *Runner) validMatches(ctx context.Context, userID string, now time.Time) ([]models.RecordedMatch, error) {
	stored, err := r.store.Matches(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading matches of %s: %w", userID, err)
	}
	return ValidMatches(stored.Matches, now, r.window), nil
}

// mergeUpdates appends the new records to the valid history of every target and of every
// partner that was not a target.
func (r *Runner) mergeUpdates(ctx context.Context, existing map[string][]models.RecordedMatch, alloc *Allocation, now time.Time) (map[string][]models.RecordedMatch, error) {
	updates := make(map[string][]models.RecordedMatch, len(existing)+len(alloc.Matches))
	for id, list := range existing {
		updates[id] = append([]models.RecordedMatch(nil), list...)
	}

	partners := make([]string, 0, len(alloc.Matches))
	for id := range alloc.Matches {
		partners = append(partners, id)
	}
	sort.Strings(partners)

	for _, id := range partners {
		if _, loaded := updates[id]; !loaded {
			valid, err := r.validMatches(ctx, id, now)
			if err != nil {
				return nil, err
			}
			updates[id] = valid
		}
		updates[id] = append(updates[id], alloc.Matches[id]...)
	}

	return updates, nil
}

func (r *Runner) report(ctx context.Context, summary *Summary, log *zap.Logger) {
	if r.reporter == nil {
		return
	}
	if err := r.reporter.Report(ctx, summary); err != nil {
		log.Warn("failed to write run report", zap.Error(err))
	}
}

func summarizeAllocation(summary *Summary, alloc *Allocation) {
	summary.Committed = len(alloc.Committed)
	summary.Skipped = len(alloc.Skipped)
	summary.PerUser = map[string]int{}
	for id, list := range alloc.Matches {
		summary.PerUser[id] = len(list)
	}
	for _, e := range alloc.Committed {
		summary.Pairs = append(summary.Pairs, PairSummary{
			Users:  [2]string{e.Subject, e.Candidate},
			Rating: e.Result.CompatibilityRating,
			Themes: e.Result.HighlightedThemes,
		})
	}
}
