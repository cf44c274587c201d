package filtering

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/spigell/matchmaker/internal/models"
)

const (
	ChildSafetyName = "child_safety"
	OrientationName = "orientation"
	AgeRangeName    = "age_range"
	DistanceName    = "distance"
)

// allowFunc reports whether subject's declared constraints accept other.
type allowFunc func(subject, other *models.Profile, now time.Time) bool

// preferenceFilter keeps a candidate only when the rule holds in both directions.
type preferenceFilter struct {
	name      string
	allows    allowFunc
	now       func() time.Time
	enabled   bool
	reason    string
	mandatory bool
}

func newPreference(name string, allows allowFunc, now func() time.Time, mandatory bool) *preferenceFilter {
	if now == nil {
		now = time.Now
	}

	return &preferenceFilter{
		name:      name,
		allows:    allows,
		now:       now,
		enabled:   true,
		mandatory: mandatory,
	}
}

// NewChildSafety creates the filter that never pairs a minor with an adult. It cannot be disabled.
func NewChildSafety(now func() time.Time) Filter {
	return newPreference(ChildSafetyName, childSafety, now, true)
}

// NewOrientation creates the filter that honours declared accepted genders.
func NewOrientation() Filter {
	return newPreference(OrientationName, orientation, nil, false)
}

// NewAgeRange creates the filter that honours declared partner age ranges.
func NewAgeRange(now func() time.Time) Filter {
	return newPreference(AgeRangeName, ageRange, now, false)
}

// NewDistance creates the filter that honours declared maximum partner distances.
func NewDistance() Filter {
	return newPreference(DistanceName, distance, nil, false)
}

func (f *preferenceFilter) Name() string { return f.name }

func (f *preferenceFilter) Disable(reason string) {
	if f.mandatory {
		return
	}
	f.enabled = false
	f.reason = reason
}

func (f *preferenceFilter) IsEnabled() bool { return f.enabled }

func (f *preferenceFilter) Validate() error { return nil }

func (f *preferenceFilter) Apply(_ context.Context, subject *models.Profile, candidates []*models.Profile) ([]*models.Profile, Step, error) {
	now := f.now()
	kept, step := keep(candidates, func(c *models.Profile) bool {
		return f.allows(subject, c, now) && f.allows(c, subject, now)
	})

	return kept, step, nil
}

func (f *preferenceFilter) Status() Status {
	return Status{
		Name:    f.name,
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"mandatory": strconv.FormatBool(f.mandatory)},
	}
}

// Eligible reports whether a and b may be paired according to every preference rule.
func Eligible(a, b *models.Profile, now time.Time) bool {
	for _, allows := range []allowFunc{childSafety, orientation, ageRange, distance} {
		if !allows(a, b, now) || !allows(b, a, now) {
			return false
		}
	}
	return true
}

func childSafety(subject, other *models.Profile, now time.Time) bool {
	return subject.IsMinor(now) == other.IsMinor(now)
}

func orientation(subject, other *models.Profile, _ time.Time) bool {
	if len(subject.Orientation) == 0 {
		return true
	}
	return slices.Contains(subject.Orientation, other.Gender)
}

func ageRange(subject, other *models.Profile, now time.Time) bool {
	if subject.AgeRange == nil {
		return true
	}

	age, ok := other.Age(now)
	if !ok {
		return true
	}

	return subject.AgeRange.Contains(age)
}

func distance(subject, other *models.Profile, _ time.Time) bool {
	if subject.Location == nil || subject.DistanceRangeKm == nil {
		return true
	}

	if !other.Location.Usable() {
		return false
	}

	return DistanceKm(subject.Location, other.Location) <= float64(*subject.DistanceRangeKm)
}
