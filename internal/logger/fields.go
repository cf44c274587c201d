package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRunID    = "run_id"
	// FieldRunMode is either "full" or "single_user".
	FieldRunMode = "run_mode"
	FieldUserID  = "user_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace and
// omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the oracle provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// RunFields identifies a matchmaking run. userID is empty for full-population runs.
func RunFields(runID, userID string) []zap.Field {
	mode := "full"
	if strings.TrimSpace(userID) != "" {
		mode = "single_user"
	}

	return StringFields(
		StringField{Key: FieldRunID, Value: runID},
		StringField{Key: FieldRunMode, Value: mode},
		StringField{Key: FieldUserID, Value: userID},
	)
}

func WithRunFields(logger *zap.Logger, runID, userID string) *zap.Logger {
	return WithFields(logger, RunFields(runID, userID)...)
}
