package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/models"
	"github.com/spigell/matchmaker/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var rankingPrompt string

//go:embed completeness.md
var completenessPrompt string

const (
	defaultMaxLogLength = 200

	systemInstruction = "You are a careful, honest dating matchmaker. Follow the output format exactly."
)

var errMissingRating = errors.New("response has no compatibility_rating")

// MatchSchema describes the JSON object the ranking prompt asks for.
var MatchSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"compatibility_rating": {Type: genai.TypeInteger},
		"rationale1":           {Type: genai.TypeString},
		"rationale2":           {Type: genai.TypeString},
		"highlighted_themes": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"compatibility_rating", "rationale1", "rationale2"},
}

// Scorer asks the model to rate the compatibility of a pair and to explain it to each side.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	now       func() time.Time
}

var (
	_ ai.Scorer               = (*Scorer)(nil)
	_ ai.CompletenessAssessor = (*Scorer)(nil)
)

func NewScorer(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		now:       time.Now,
	}
}

func (s *Scorer) ScorePair(ctx context.Context, subject *models.Profile, subjectPersona *models.Persona, candidate *models.Profile, candidatePersona *models.Persona) (*models.MatchResult, error) {
	if subject == nil || candidate == nil {
		return nil, errors.New("both profiles are required")
	}
	if subjectPersona == nil || candidatePersona == nil {
		return nil, errors.New("both personas are required")
	}

	now := s.now()
	prompt := buildRankingPrompt(
		subject.Describe(now), subjectPersona.Description,
		candidate.Describe(now), candidatePersona.Description,
	)

	pairFields := []zap.Field{
		zap.String("user_id", subject.UserID),
		zap.String("candidate_id", candidate.UserID),
	}

	s.logger.Debug("gemini ranking request", append(pairFields, utils.Preview("prompt", prompt, s.maxLogLen)...)...)

	raw, err := s.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini ranking response", append(pairFields, utils.Preview("response", raw, s.maxLogLen)...)...)

	return parseMatchResult(raw)
}

// AssessCompleteness returns the raw completeness answer for the persona.
func (s *Scorer) AssessCompleteness(ctx context.Context, persona *models.Persona) (string, error) {
	if persona == nil {
		return "", errors.New("persona is required")
	}

	prompt := strings.ReplaceAll(completenessPrompt, "{{PERSONA}}", persona.Description)
	prompt = strings.ReplaceAll(prompt, "{{THEMES}}", ai.FormatThemes())

	raw, err := s.generator.GenerateContent(ctx, "", prompt)
	if err != nil {
		return "", err
	}

	s.logger.Debug("gemini completeness response",
		zap.String("user_id", persona.UserID),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return raw, nil
}

func buildRankingPrompt(profile1, persona1, profile2, persona2 string) string {
	template := rankingPrompt
	if strings.TrimSpace(template) == "" {
		template = "Person 1\n{{PROFILE1}}\n{{PERSONA1}}\n\nPerson 2\n{{PROFILE2}}\n{{PERSONA2}}\n\nThemes:\n{{THEMES}}\n\nJSON Response:"
	}

	return strings.NewReplacer(
		"{{THEMES}}", ai.FormatThemes(),
		"{{PROFILE1}}", profile1,
		"{{PERSONA1}}", persona1,
		"{{PROFILE2}}", profile2,
		"{{PERSONA2}}", persona2,
	).Replace(template)
}

func parseMatchResult(raw string) (*models.MatchResult, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if _, ok := data["compatibility_rating"]; !ok {
		return nil, errMissingRating
	}

	var result models.MatchResult
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &result,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("build response decoder: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	result.Rationale1 = strings.TrimSpace(result.Rationale1)
	result.Rationale2 = strings.TrimSpace(result.Rationale2)

	return &result, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
