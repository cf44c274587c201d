package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema migrations",
	Run: func(_ *cobra.Command, _ []string) {
		migrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrate() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config.Store == nil || config.Store.Backend != backendPostgres {
		logger.Fatal("migrations are only available for the postgres backend", zap.String("hint", "set store.backend=postgres"))
	}

	pg, err := openPostgres(ctx, config.Store.Postgres)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err), zap.String("hint", "set store.postgres.dsn-file or DATABASE_URL"))
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Fatal("applying migrations", zap.Error(err))
	}

	logger.Info("migrations applied")
}
