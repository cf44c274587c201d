package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/logger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of the last full matchmaking run",
	Run: func(_ *cobra.Command, _ []string) {
		status()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func status() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	st, err := openStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening a store", zap.Error(err))
	}
	defer st.Close()

	current, err := st.MatchmakingStatus(ctx)
	if err != nil {
		logger.Fatal("loading matchmaking status", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(current, "", "  ")
	fmt.Println(string(pretty))
}
