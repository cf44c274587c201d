package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// learnScale is the share of a reported score that is added to the stored one.
	learnScale = 0.2
	// learnThreshold is the reported score a theme must exceed to count as new evidence.
	learnThreshold = 25
	maxThemeScore  = 100
)

var ErrNoScoresBlock = errors.New("response has no ```json block")

// InitialScores returns a zero score for every known theme.
func InitialScores() map[string]int {
	scores := make(map[string]int, len(DatingThemes))
	for _, name := range ThemeNames() {
		scores[name] = 0
	}
	return scores
}

// ApplyCompleteness folds a completeness response into the current theme scores.
// It always returns a usable map: on a malformed response the current scores are returned
// unchanged together with the parse error.
func ApplyCompleteness(current map[string]int, raw string) (map[string]int, error) {
	if len(current) == 0 {
		current = InitialScores()
	}

	updated := make(map[string]int, len(current))
	for k, v := range current {
		updated[k] = v
	}

	reported, err := parseScores(raw)
	if err != nil {
		return updated, err
	}

	for theme, value := range reported {
		curr, known := current[theme]
		if !known || value <= learnThreshold {
			continue
		}
		updated[theme] = min(curr+int(learnScale*float64(value)), maxThemeScore)
	}

	return updated, nil
}

func parseScores(raw string) (map[string]int, error) {
	_, block, found := strings.Cut(raw, "```json")
	if !found {
		return nil, ErrNoScoresBlock
	}
	block = strings.TrimSpace(strings.ReplaceAll(block, "```", ""))

	var scores map[string]int
	if err := json.Unmarshal([]byte(block), &scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	return scores, nil
}
