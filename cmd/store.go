package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/secrets"
	"github.com/spigell/matchmaker/internal/store"
	"github.com/spigell/matchmaker/internal/store/dynamo"
	"github.com/spigell/matchmaker/internal/store/memory"
	"github.com/spigell/matchmaker/internal/store/postgres"
)

const (
	backendMemory   = "memory"
	backendDynamo   = "dynamo"
	backendPostgres = "postgres"
)

// openStore builds the configured persistence backend.
func openStore(ctx context.Context, cfg *StoreConfig, logger *zap.Logger) (store.Store, error) {
	if cfg == nil {
		return nil, errors.New("store configuration is required")
	}

	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case "", backendMemory:
		if cfg.Memory == nil || cfg.Memory.Fixture == "" {
			return nil, errors.New("store.memory.fixture is required for the memory backend")
		}

		var opts []memory.Option
		if cfg.Memory.WriteBack {
			opts = append(opts, memory.WithWriteBack(cfg.Memory.Fixture))
		}

		logger.Info("using memory store", zap.String("fixture", cfg.Memory.Fixture), zap.Bool("write_back", cfg.Memory.WriteBack))
		return memory.Load(cfg.Memory.Fixture, opts...)

	case backendDynamo, "dynamodb":
		dc := cfg.Dynamo
		if dc == nil {
			dc = &DynamoConfig{}
		}

		client, err := dynamo.NewClient(ctx, dc.Region, dc.Endpoint)
		if err != nil {
			return nil, err
		}

		logger.Info("using dynamodb store", zap.String("region", dc.Region), zap.String("endpoint", dc.Endpoint))
		return dynamo.New(client, dc.Tables, logger), nil

	case backendPostgres:
		pg, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}

		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}

		logger.Info("using postgres store", zap.Bool("migrated", cfg.Postgres.Migrate))
		return pg, nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func openPostgres(ctx context.Context, cfg *PostgresConfig) (*postgres.Store, error) {
	if cfg == nil {
		return nil, errors.New("store.postgres configuration is required for the postgres backend")
	}

	dsn, err := secrets.Load(secrets.Source{
		Name:  "postgres dsn",
		Value: cfg.DSN,
		File:  cfg.DSNFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		return nil, err
	}

	return postgres.Open(ctx, dsn)
}
