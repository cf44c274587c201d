package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/filtering"
	"github.com/spigell/matchmaker/internal/logger"
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Never pair two users again",
	Run: func(cmd *cobra.Command, _ []string) {
		block(cmd)
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)

	blockCmd.Flags().StringSlice("users", nil, "the two users to keep apart, comma separated")
	blockCmd.Flags().String("reason", "", "why the pair is blocked")
	blockCmd.MarkFlagRequired("users")
}

func block(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	users, _ := cmd.Flags().GetStringSlice("users")
	reason, _ := cmd.Flags().GetString("reason")

	path := ""
	if config.Filters != nil {
		path = config.Filters.BlockedPairsFile
	}

	added, err := blockPair(path, users, reason, time.Now().UTC())
	if err != nil {
		logger.Fatal("blocking a pair", zap.Error(err), zap.String("hint", "check filters.blocked-pairs-file"))
	}

	if !added {
		logger.Info("pair is already blocked", zap.Strings("users", users))
		return
	}
	logger.Info("pair blocked", zap.Strings("users", users), zap.String("file", path))
}

func blockPair(path string, users []string, reason string, now time.Time) (bool, error) {
	if path == "" {
		return false, errors.New("filters.blocked-pairs-file is not set")
	}
	if len(users) != 2 || users[0] == "" || users[1] == "" {
		return false, errors.New("exactly two user ids are required")
	}
	if users[0] == users[1] {
		return false, errors.New("a user cannot be blocked from itself")
	}

	blocked, err := filtering.LoadBlockedPairs(path)
	if err != nil {
		return false, err
	}

	if !blocked.Add(users[0], users[1], reason, now) {
		return false, nil
	}

	return true, blocked.ToFile(path)
}
