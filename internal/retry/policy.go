// Package retry decides whether a classified failure is worth another attempt
// and how long to wait before it. Both decisions are pure functions of the
// options, the kind and the attempt number.
package retry

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/casaflow/relay-go/internal/classify"
)

// Options controls the retry loop.
type Options struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// JitterFactor, when > 0, spreads each delay by up to that fraction of the
	// computed value. The result never exceeds MaxDelay * (1 + JitterFactor).
	JitterFactor float64
}

// Validate checks the option invariants.
func (o Options) Validate() error {
	if o.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", o.MaxAttempts)
	}
	if o.InitialDelay < 0 {
		return fmt.Errorf("initial delay must be >= 0, got %v", o.InitialDelay)
	}
	if o.MaxDelay < o.InitialDelay {
		return fmt.Errorf("max delay %v must be >= initial delay %v", o.MaxDelay, o.InitialDelay)
	}
	if o.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %v", o.Multiplier)
	}
	if o.JitterFactor < 0 {
		return fmt.Errorf("jitter factor must be >= 0, got %v", o.JitterFactor)
	}
	return nil
}

// ShouldRetry reports whether a failure of the given kind on the given
// (1-indexed) attempt is eligible for another dispatch. Unauthorized is never
// retried here; it escalates to credential renewal instead. Unknown is
// surfaced, not hidden behind retries.
func (o Options) ShouldRetry(kind classify.Kind, attempt int) bool {
	if attempt >= o.MaxAttempts {
		return false
	}
	switch kind {
	case classify.Network, classify.Timeout, classify.ServerError:
		return true
	default:
		return false
	}
}

// DelayFor returns the backoff delay before the retry that follows the given
// attempt: min(InitialDelay * Multiplier^(attempt-1), MaxDelay), plus bounded
// jitter when configured. attempt is 1-indexed.
func (o Options) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(o.InitialDelay) * math.Pow(o.Multiplier, float64(attempt-1))
	if delay > float64(o.MaxDelay) {
		delay = float64(o.MaxDelay)
	}
	if o.JitterFactor > 0 {
		delay += delay * o.JitterFactor * rand.Float64()
	}
	return time.Duration(delay)
}

// Presets recognized by configuration.
const (
	PresetAggressive   = "aggressive"
	PresetStandard     = "standard"
	PresetConservative = "conservative"
	PresetNone         = "none"
)

// Standard is the default policy: 3 attempts, 1s initial, 30s cap, doubling.
func Standard() Options {
	return Options{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
}

// Aggressive retries more and waits less: 5 attempts, 500ms initial, 10s cap.
func Aggressive() Options {
	return Options{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2}
}

// Conservative retries less and waits longer: 2 attempts, 2s initial, 60s cap.
func Conservative() Options {
	return Options{MaxAttempts: 2, InitialDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Multiplier: 3}
}

// None disables retries entirely.
func None() Options {
	return Options{MaxAttempts: 1, InitialDelay: 0, MaxDelay: 0, Multiplier: 1}
}

// Preset resolves a preset name to its options.
func Preset(name string) (Options, error) {
	switch name {
	case PresetAggressive:
		return Aggressive(), nil
	case PresetStandard, "":
		return Standard(), nil
	case PresetConservative:
		return Conservative(), nil
	case PresetNone:
		return None(), nil
	default:
		return Options{}, fmt.Errorf("unknown retry preset %q", name)
	}
}
