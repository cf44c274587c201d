package filtering

import (
	"time"

	"go.uber.org/zap"
)

// Options configures the default filter chain.
type Options struct {
	BlockedPairsFile string
	Disabled         []string
	Now              func() time.Time
}

// Default returns the filter chain used by discovery: self, blocked pairs and every
// preference rule, with the configured rules disabled.
func Default(opts Options, logger *zap.Logger) *Filtering {
	f := New([]Filter{
		NewSelf(),
		NewBlockedPairs(opts.BlockedPairsFile),
		NewChildSafety(opts.Now),
		NewOrientation(),
		NewAgeRange(opts.Now),
		NewDistance(),
	}, logger)

	f.DisableByName(opts.Disabled, "disabled by configuration")

	return f
}
