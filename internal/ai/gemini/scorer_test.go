package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/matchmaker/internal/ai"
	"github.com/spigell/matchmaker/internal/models"
)

type stubGenerator struct {
	response    string
	err         error
	lastSystem  string
	lastMessage string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.lastSystem = system
	s.lastMessage = message
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testPair() (*models.Profile, *models.Persona, *models.Profile, *models.Persona) {
	subject := &models.Profile{
		UserID:       "u1",
		Name:         "Alice",
		DOB:          "01/01/1995",
		Gender:       "female",
		PhoneNumber:  &models.PhoneNumber{CountryCode: "+44", Number: "7700900000"},
		ProfileImage: "https://cdn.example/alice.png",
	}
	candidate := &models.Profile{UserID: "u2", Name: "Bob", Gender: "male"}

	return subject, &models.Persona{UserID: "u1", Description: "Loves hiking"},
		candidate, &models.Persona{UserID: "u2", Description: "Plays cello"}
}

func TestScorerScorePair(t *testing.T) {
	stub := &stubGenerator{response: `{"compatibility_rating": 9, "rationale1": " Bob is great ", "rationale2": "Alice is great", "highlighted_themes": ["Interests & Passions"]}`}
	scorer := NewScorer(stub, 0, zap.NewNop())
	scorer.now = func() time.Time { return time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC) }

	subject, subjectPersona, candidate, candidatePersona := testPair()

	result, err := scorer.ScorePair(context.Background(), subject, subjectPersona, candidate, candidatePersona)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.CompatibilityRating != 9 {
		t.Fatalf("expected rating 9, got %d", result.CompatibilityRating)
	}
	if result.Rationale1 != "Bob is great" || result.Rationale2 != "Alice is great" {
		t.Fatalf("unexpected rationales: %+v", result)
	}
	if len(result.HighlightedThemes) != 1 || result.HighlightedThemes[0] != "Interests & Passions" {
		t.Fatalf("unexpected themes: %v", result.HighlightedThemes)
	}

	prompt := stub.lastMessage
	for _, want := range []string{"Name: Alice", "Date of Birth: 01/01/1995 (31)", "Loves hiking", "Name: Bob", "Plays cello", ai.DatingThemes[0].Name} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
	for _, secret := range []string{"7700900000", "alice.png", "u1", "u2"} {
		if strings.Contains(prompt, secret) {
			t.Fatalf("prompt must not contain %q", secret)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("prompt has unreplaced placeholders")
	}
	if stub.lastSystem == "" {
		t.Fatalf("expected system instruction")
	}
}

func TestScorerPropagatesGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("boom")}
	scorer := NewScorer(stub, 0, nil)

	subject, subjectPersona, candidate, candidatePersona := testPair()
	if _, err := scorer.ScorePair(context.Background(), subject, subjectPersona, candidate, candidatePersona); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseMatchResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		rating  int
		wantErr bool
	}{
		{name: "plain", raw: `{"compatibility_rating": 8, "rationale1": "a", "rationale2": "b"}`, rating: 8},
		{name: "code block", raw: "```json\n{\"compatibility_rating\": 7, \"rationale1\": \"a\", \"rationale2\": \"b\"}\n```", rating: 7},
		{name: "rating as string", raw: `{"compatibility_rating": "10", "rationale1": "a", "rationale2": "b"}`, rating: 10},
		{name: "missing rating", raw: `{"rationale1": "a", "rationale2": "b"}`, wantErr: true},
		{name: "not json", raw: "I think they are a great match", wantErr: true},
		{name: "rating not a number", raw: `{"compatibility_rating": "high"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseMatchResult(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.CompatibilityRating != tt.rating {
				t.Fatalf("expected rating %d, got %d", tt.rating, result.CompatibilityRating)
			}
		})
	}
}

func TestScorerAssessCompleteness(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"Values & Beliefs\": 60}\n```"}
	scorer := NewScorer(stub, 0, nil)

	raw, err := scorer.AssessCompleteness(context.Background(), &models.Persona{UserID: "u1", Description: "Volunteers every weekend"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != stub.response {
		t.Fatalf("expected raw response to be returned")
	}
	if !strings.Contains(stub.lastMessage, "Volunteers every weekend") || !strings.Contains(stub.lastMessage, "Date Dynamics") {
		t.Fatalf("unexpected completeness prompt: %s", stub.lastMessage)
	}

	scores, err := ai.ApplyCompleteness(nil, raw)
	if err != nil || scores["Values & Beliefs"] != 12 {
		t.Fatalf("unexpected scores %v, %v", scores, err)
	}
}
