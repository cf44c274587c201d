package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/ai/gemini"
	"github.com/spigell/matchmaker/internal/events"
	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/lock"
	"github.com/spigell/matchmaker/internal/logger"
	"github.com/spigell/matchmaker/internal/matchmaking"
	"github.com/spigell/matchmaker/internal/report"
	"github.com/spigell/matchmaker/internal/secrets"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a matchmaking pass over the whole population or a single user",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("user-id", "u", "", "run matchmaking for a single user only")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before saving matches")
	runCmd.Flags().Bool("dry-run", false, "find and allocate matches without saving or publishing them")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Matchmaking == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the matchmaker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	userID, _ := cmd.Flags().GetString("user-id")
	autoApprove, _ := cmd.Flags().GetBool("yes")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	st, err := openStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening a store", zap.Error(err), zap.String("hint", "check the store section of the configuration file"))
	}
	defer st.Close()

	scorer, err := newScorer(ctx, config.AI, true, logger)
	if err != nil {
		logger.Fatal("building the compatibility scorer", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	filters := prepareFilters(config.Filters, logger)

	mc := config.Matchmaking
	pairScorer := matchmaking.NewPairScorer(scorer, st, mc.Workers, logger)
	discoverer := matchmaking.NewDiscoverer(filters, pairScorer, mc.SubsetSize, mc.MinRating, logger)

	opts := []matchmaking.Option{
		matchmaking.WithQuota(mc.MaxNewMatches),
		matchmaking.WithRecencyWindow(mc.RecencyWindow),
		matchmaking.WithDryRun(dryRun),
		matchmaking.WithLogger(logger),
	}

	if config.Lock != nil && config.Lock.Enabled {
		locker, closeLock, err := prepareLocker(ctx, config.Lock)
		if err != nil {
			logger.Fatal("connecting to the run lock", zap.Error(err), zap.String("hint", "disable the lock with lock.enabled=false"))
		}
		defer closeLock()
		opts = append(opts, matchmaking.WithLocker(locker))
	}

	if config.Events != nil && config.Events.Enabled {
		if len(config.Events.Brokers) == 0 {
			logger.Fatal("events are enabled without brokers", zap.String("hint", "set events.brokers"))
		}
		producer := events.NewProducer(config.Events.Brokers, config.Events.Topic, logger)
		defer producer.Close()
		opts = append(opts, matchmaking.WithPublisher(producer))
	}

	reporter, err := prepareReporter(ctx, config.Report)
	if err != nil {
		logger.Fatal("preparing run reports", zap.Error(err))
	}
	if reporter != nil {
		opts = append(opts, matchmaking.WithReporter(reporter))
	}

	if !autoApprove && !dryRun {
		opts = append(opts, matchmaking.WithConfirm(confirmRun(logger)))
	}

	runner := matchmaking.NewRunner(st, discoverer, opts...)

	result, err := runner.Run(ctx, userID)
	if errors.Is(err, matchmaking.ErrRunInProgress) {
		logger.Fatal("exiting", zap.Error(err), zap.String("hint", "wait for the running full pass to finish"))
	}
	if err != nil {
		logger.Fatal("matchmaking run failed", zap.Error(err))
	}

	logger.Info(result.Message,
		zap.String("run_id", result.RunID),
		zap.Int("new_matches", result.NewMatchCount),
	)
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	genLogger := logger.With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

// newScorer builds the Gemini scorer. Ranking requests a structured JSON response, while
// completeness assessment expects a fenced block in free text.
func newScorer(ctx context.Context, cfg *AIConfig, ranking bool, baseLogger *zap.Logger) (*gemini.Scorer, error) {
	generator, err := newGenerator(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	if ranking {
		generator = generator.WithSchema(gemini.MatchSchema)
	}

	scorerLogger := logger.WithCommonFields(baseLogger, "gemini", generator.Model())
	return gemini.NewScorer(generator, cfg.Gemini.MaxLogLength, scorerLogger), nil
}

func prepareFilters(cfg *FiltersConfig, logger *zap.Logger) *filtering.Filtering {
	if cfg == nil {
		cfg = &FiltersConfig{}
	}

	filters := filtering.Default(filtering.Options{
		BlockedPairsFile: cfg.BlockedPairsFile,
		Disabled:         cfg.Disabled,
	}, logger)

	if err := filters.Validate(); err != nil {
		logger.Fatal("validating filters", zap.Error(err), zap.String("hint", "check filters.blocked-pairs-file"))
	}

	for _, status := range filters.Describe() {
		logger.Debug("filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return filters
}

func prepareLocker(ctx context.Context, cfg *LockConfig) (*lock.RedisLocker, func() error, error) {
	password, err := secrets.LoadOptional(secrets.Source{
		Name:  "redis password",
		Value: cfg.Password,
		File:  cfg.PasswordFile,
	})
	if err != nil {
		return nil, nil, err
	}

	client, err := lock.NewClient(ctx, lock.Options{Addr: cfg.Addr, Password: password, DB: cfg.DB})
	if err != nil {
		return nil, nil, err
	}

	return lock.NewRedisLocker(client, cfg.Key, cfg.TTL), client.Close, nil
}

func prepareReporter(ctx context.Context, cfg *ReportConfig) (matchmaking.Reporter, error) {
	if cfg == nil {
		return nil, nil
	}

	var sinks report.Multi
	if cfg.Dir != "" {
		sinks = append(sinks, report.NewDir(cfg.Dir))
	}

	if cfg.S3 != nil && cfg.S3.Bucket != "" {
		client, err := report.NewS3Client(ctx, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, report.NewS3(client, cfg.S3.Bucket, cfg.S3.Prefix))
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// confirmRun shows the allocated pairs and asks before anything is saved.
func confirmRun(logger *zap.Logger) matchmaking.ConfirmFunc {
	return func(_ context.Context, summary *matchmaking.Summary) (bool, error) {
		pretty, _ := json.MarshalIndent(summary.Pairs, "", "  ")
		logger.Info(string(pretty),
			zap.Int("pool", summary.PoolSize),
			zap.Int("committed", summary.Committed),
			zap.Int("skipped", summary.Skipped),
		)

		prompt := promptui.Select{
			Label: "Save matches?",
			Items: []string{PromptYes, PromptNo},
		}

		_, action, err := prompt.Run()
		if err != nil {
			return false, err
		}

		return action == PromptYes, nil
	}
}
