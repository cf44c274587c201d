package models

import (
	"sort"
	"strings"
	"time"
)

const canonicalSeparator = "_"

// MatchResult is the oracle's judgment for an unordered pair.
// Rationale1 is addressed to the first profile of the request, Rationale2 to the second.
type MatchResult struct {
	CompatibilityRating int      `json:"compatibility_rating" mapstructure:"compatibility_rating"`
	Rationale1          string   `json:"rationale1" mapstructure:"rationale1"`
	Rationale2          string   `json:"rationale2" mapstructure:"rationale2"`
	HighlightedThemes   []string `json:"highlighted_themes,omitempty" mapstructure:"highlighted_themes"`
}

// RecordedMatch is a pairing as seen by the user that owns it; UserID is the counterpart.
type RecordedMatch struct {
	UserID              string    `json:"user_id" yaml:"user_id" dynamodbav:"user_id"`
	Rationale           string    `json:"rationale" yaml:"rationale" dynamodbav:"rationale"`
	CompatibilityRating int       `json:"compatibility_rating" yaml:"compatibility_rating" dynamodbav:"compatibility_rating"`
	HighlightedThemes   []string  `json:"highlighted_themes" yaml:"highlighted_themes" dynamodbav:"highlighted_themes"`
	YouShowedInterest   bool      `json:"you_showed_interest" yaml:"you_showed_interest" dynamodbav:"you_showed_interest"`
	YourInterested      bool      `json:"your_interested" yaml:"your_interested" dynamodbav:"your_interested"`
	HadDate             bool      `json:"had_date" yaml:"had_date" dynamodbav:"had_date"`
	HadRelationship     bool      `json:"had_relationship" yaml:"had_relationship" dynamodbav:"had_relationship"`
	DateMatched         time.Time `json:"date_matched" yaml:"date_matched" dynamodbav:"date_matched"`
	AdditionalContext   string    `json:"additional_context,omitempty" yaml:"additional_context,omitempty" dynamodbav:"additional_context,omitempty"`
}

type StoredMatches struct {
	Matches     []RecordedMatch `json:"matches" yaml:"matches" dynamodbav:"matches"`
	LastUpdated *time.Time      `json:"last_updated,omitempty" yaml:"last_updated,omitempty" dynamodbav:"last_updated,omitempty"`
}

// NewRecordedMatches builds both sides of a pairing between user1 and user2.
// The record owned by user1 points at user2 and carries Rationale1; the record owned by
// user2 points at user1 and carries Rationale2.
func NewRecordedMatches(user1, user2 string, result MatchResult, matchedAt time.Time) (RecordedMatch, RecordedMatch) {
	themes := append([]string(nil), result.HighlightedThemes...)

	first := RecordedMatch{
		UserID:              user2,
		Rationale:           result.Rationale1,
		CompatibilityRating: result.CompatibilityRating,
		HighlightedThemes:   themes,
		DateMatched:         matchedAt,
	}
	second := RecordedMatch{
		UserID:              user1,
		Rationale:           result.Rationale2,
		CompatibilityRating: result.CompatibilityRating,
		HighlightedThemes:   themes,
		DateMatched:         matchedAt,
	}

	return first, second
}

// ValidAt reports whether the match is still inside the recency window at now.
func (m RecordedMatch) ValidAt(now time.Time, window time.Duration) bool {
	return now.Sub(m.DateMatched) < window
}

// CreatedWithin reports whether the match was created in the trailing period ending at now.
func (m RecordedMatch) CreatedWithin(now time.Time, period time.Duration) bool {
	return !m.DateMatched.Before(now.Add(-period)) && !m.DateMatched.After(now)
}

// CanonicalMatchID returns the order-independent identifier of the pair.
func CanonicalMatchID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, canonicalSeparator)
}
