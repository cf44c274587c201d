package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/logger"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage user personas",
}

var personaScoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Update the per-theme completeness scores of a persona",
	Run: func(cmd *cobra.Command, _ []string) {
		scorePersona(cmd)
	},
}

func init() {
	rootCmd.AddCommand(personaCmd)
	personaCmd.AddCommand(personaScoreCmd)

	personaScoreCmd.Flags().StringP("user-id", "u", "", "user whose persona is scored")
	personaScoreCmd.MarkFlagRequired("user-id")
}

func scorePersona(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetString("user-id")

	st, err := openStore(ctx, config.Store, logger)
	if err != nil {
		logger.Fatal("opening a store", zap.Error(err))
	}
	defer st.Close()

	found, err := st.Personas(ctx, []string{userID})
	if err != nil {
		logger.Fatal("loading persona", zap.Error(err))
	}
	persona, ok := found[userID]
	if !ok {
		logger.Fatal("persona not found", zap.String("user_id", userID))
	}

	scorer, err := newScorer(ctx, config.AI, false, logger)
	if err != nil {
		logger.Fatal("building the completeness assessor", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	raw, err := scorer.AssessCompleteness(ctx, persona)
	if err != nil {
		logger.Fatal("assessing persona completeness", zap.Error(err))
	}

	scores, err := ai.ApplyCompleteness(persona.CategoryScores, raw)
	if err != nil {
		logger.Warn("keeping current scores", zap.String("user_id", userID), zap.Error(err))
	}

	persona.CategoryScores = scores
	if err := st.SavePersona(ctx, persona); err != nil {
		logger.Fatal("saving persona", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(scores, "", "  ")
	logger.Info(fmt.Sprintf("persona scores: \n %s", pretty), zap.String("user_id", userID))
}
