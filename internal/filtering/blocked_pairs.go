package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spigell/matchmaker/internal/models"
)

const (
	SelfName         = "self"
	BlockedPairsName = "blocked_pairs"
)

type BlockedPair struct {
	Users     [2]string  `json:"users"`
	Reason    string     `json:"reason,omitempty"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
}

type BlockedPairs struct {
	Items []*BlockedPair `json:"items"`
}

// LoadBlockedPairs reads the blocked pairs file. A missing or empty file yields an empty list.
func LoadBlockedPairs(path string) (*BlockedPairs, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &BlockedPairs{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &BlockedPairs{}, nil
	}

	var blocked BlockedPairs
	if err := json.NewDecoder(file).Decode(&blocked); err != nil {
		return nil, err
	}
	return &blocked, nil
}

// Add blocks the pair of users. It reports false when the pair is already blocked.
func (b *BlockedPairs) Add(user1, user2, reason string, at time.Time) bool {
	id := models.CanonicalMatchID(user1, user2)
	if _, found := b.IDs()[id]; found {
		return false
	}

	b.Items = append(b.Items, &BlockedPair{
		Users:     [2]string{user1, user2},
		Reason:    reason,
		BlockedAt: &at,
	})
	return true
}

func (b *BlockedPairs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// IDs returns the canonical match ids of the blocked pairs.
func (b *BlockedPairs) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(b.Items))
	for _, item := range b.Items {
		if item == nil {
			continue
		}
		ids[models.CanonicalMatchID(item.Users[0], item.Users[1])] = struct{}{}
	}
	return ids
}

type blockedPairsFilter struct {
	path    string
	blocked map[string]struct{}
	enabled bool
	reason  string
}

// NewBlockedPairs creates a filter that removes candidates the subject must never be paired with.
// The file is read once, in Validate.
func NewBlockedPairs(path string) Filter {
	return &blockedPairsFilter{path: path, enabled: true}
}

func (f *blockedPairsFilter) Name() string { return BlockedPairsName }

func (f *blockedPairsFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *blockedPairsFilter) IsEnabled() bool { return f.enabled }

func (f *blockedPairsFilter) Validate() error {
	f.blocked = map[string]struct{}{}
	if f.path == "" {
		return nil
	}

	blocked, err := LoadBlockedPairs(f.path)
	if err != nil {
		return fmt.Errorf("loading blocked pairs from %s: %w", f.path, err)
	}
	f.blocked = blocked.IDs()

	return nil
}

func (f *blockedPairsFilter) Apply(_ context.Context, subject *models.Profile, candidates []*models.Profile) ([]*models.Profile, Step, error) {
	kept, step := keep(candidates, func(c *models.Profile) bool {
		_, found := f.blocked[models.CanonicalMatchID(subject.UserID, c.UserID)]
		return !found
	})

	return kept, step, nil
}

func (f *blockedPairsFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	details["pairs"] = fmt.Sprintf("%d", len(f.blocked))
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}

type selfFilter struct{}

// NewSelf creates the filter that drops the subject from its own candidates.
func NewSelf() Filter {
	return selfFilter{}
}

func (selfFilter) Name() string { return SelfName }

func (selfFilter) Disable(string) {}

func (selfFilter) IsEnabled() bool { return true }

func (selfFilter) Validate() error { return nil }

func (selfFilter) Apply(_ context.Context, subject *models.Profile, candidates []*models.Profile) ([]*models.Profile, Step, error) {
	kept, step := keep(candidates, func(c *models.Profile) bool {
		return c.UserID != subject.UserID
	})
	return kept, step, nil
}
