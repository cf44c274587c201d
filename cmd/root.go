package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/matchmaker/internal/ai/gemini"
	"github.com/spigell/matchmaker/internal/lock"
	"github.com/spigell/matchmaker/internal/matchmaking"
	"github.com/spigell/matchmaker/internal/store/dynamo"
)

const (
	app       = "matchmaker"
	envPrefix = "MATCHMAKER"
)

type Config struct {
	Matchmaking *MatchmakingConfig `mapstructure:"matchmaking"`
	Filters     *FiltersConfig     `mapstructure:"filters"`
	AI          *AIConfig          `mapstructure:"ai"`
	Store       *StoreConfig       `mapstructure:"store"`
	Lock        *LockConfig        `mapstructure:"lock"`
	Events      *EventsConfig      `mapstructure:"events"`
	Report      *ReportConfig      `mapstructure:"report"`
}

type MatchmakingConfig struct {
	SubsetSize    int           `mapstructure:"subset-size"`
	MinRating     int           `mapstructure:"min-rating"`
	MaxNewMatches int           `mapstructure:"max-new-matches"`
	RecencyWindow time.Duration `mapstructure:"recency-window"`
	Workers       int           `mapstructure:"workers"`
}

type FiltersConfig struct {
	BlockedPairsFile string   `mapstructure:"blocked-pairs-file"`
	Disabled         []string `mapstructure:"disabled"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type StoreConfig struct {
	// Backend is one of memory, dynamo or postgres.
	Backend  string          `mapstructure:"backend"`
	Memory   *MemoryConfig   `mapstructure:"memory"`
	Dynamo   *DynamoConfig   `mapstructure:"dynamo"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
}

type MemoryConfig struct {
	Fixture   string `mapstructure:"fixture"`
	WriteBack bool   `mapstructure:"write-back"`
}

type DynamoConfig struct {
	Region   string        `mapstructure:"region"`
	Endpoint string        `mapstructure:"endpoint"`
	Tables   dynamo.Tables `mapstructure:"tables"`
}

type PostgresConfig struct {
	DSN     string `mapstructure:"dsn"`
	DSNFile string `mapstructure:"dsn-file"`
	Migrate bool   `mapstructure:"migrate"`
}

type LockConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password-file"`
	DB           int           `mapstructure:"db"`
	Key          string        `mapstructure:"key"`
	TTL          time.Duration `mapstructure:"ttl"`
}

type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ReportConfig struct {
	Dir string    `mapstructure:"dir"`
	S3  *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchmaker pairs users by AI-rated compatibility and stores mutual matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults()
	bindEnv()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchmaker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("matchmaking.subset-size", matchmaking.DefaultSubsetSize)
	viper.SetDefault("matchmaking.min-rating", matchmaking.DefaultMinRating)
	viper.SetDefault("matchmaking.max-new-matches", matchmaking.DefaultQuota)
	viper.SetDefault("matchmaking.recency-window", matchmaking.DefaultRecencyWindow)
	viper.SetDefault("matchmaking.workers", matchmaking.DefaultWorkers)

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", gemini.DefaultModel)
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.memory.fixture", "matchmaker-data.yaml")

	viper.SetDefault("lock.addr", "localhost:6379")
	viper.SetDefault("lock.key", lock.DefaultKey)
	viper.SetDefault("lock.ttl", time.Hour)

	viper.SetDefault("events.topic", "matches")
}

func bindEnv() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Without an explicit --config the defaults and the environment are enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
