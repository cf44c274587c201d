package ai

import (
	"context"

	"github.com/spigell/matchmaker/internal/models"
)

// Scorer judges the romantic compatibility of two profiles.
type Scorer interface {
	ScorePair(ctx context.Context, subject *models.Profile, subjectPersona *models.Persona, candidate *models.Profile, candidatePersona *models.Persona) (*models.MatchResult, error)
}

// CompletenessAssessor rates how much evidence a persona holds for every dating theme.
// The returned text is the raw model output; see ApplyCompleteness.
type CompletenessAssessor interface {
	AssessCompleteness(ctx context.Context, persona *models.Persona) (string, error)
}
