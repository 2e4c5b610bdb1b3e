package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

type Policy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	Jitter            float64
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("maxAttempts must be >= 1")
	}
	if p.InitialDelay < 0 {
		return errors.New("initialDelay must be >= 0")
	}
	if p.BackoffMultiplier < 1 {
		return errors.New("backoffMultiplier must be >= 1")
	}
	if p.MaxDelay < 0 {
		return errors.New("maxDelay must be >= 0")
	}
	if p.MaxDelay < p.InitialDelay {
		return errors.New("maxDelay must be >= initialDelay")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return errors.New("jitter must be between 0 and 1")
	}
	return nil
}

// NextDelay returns the delay for the given 1-based attempt number.
func NextDelay(attempt int, p Policy, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		return 0
	}
	base := float64(p.InitialDelay)
	if base < 0 {
		base = 0
	}
	exp := float64(attempt - 1)
	delay := base * math.Pow(p.BackoffMultiplier, exp)
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 && rng != nil {
		j := (rng.Float64()*2 - 1) * p.Jitter
		delay = delay * (1 + j)
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}

func NextRunAt(now time.Time, attempt int, p Policy, rng *rand.Rand) time.Time {
	return now.Add(NextDelay(attempt, p, rng))
}

// DefaultLimit is the retry limit used for any batch_type without a
// more specific override in Limits.
const DefaultLimit = 3

// Limits is the per-batch_type retry limit table from spec §4.4.
var Limits = map[string]int{
	"discover-artists":   3,
	"album_page":         5,
	"album_discovery":    5,
	"track_page":         5,
	"track_discovery":    5,
	"producer_discovery": 3,
}

// LimitFor returns the retry limit for a batch_type, falling back to
// DefaultLimit for anything not in the override table.
func LimitFor(batchType string) int {
	if n, ok := Limits[batchType]; ok {
		return n
	}
	return DefaultLimit
}

// BackoffPolicy is the fixed geometric policy spec §4.4 and §8
// (testable property 8) require: 500ms, 1s, 2s, 4s, 8s, no jitter, no
// cap below the fifth step. It is a Policy like any other -- the
// batch dispatcher just never varies its parameters per job.
var BackoffPolicy = Policy{
	MaxAttempts:       100,
	InitialDelay:      500 * time.Millisecond,
	BackoffMultiplier: 2,
	MaxDelay:          time.Hour,
	Jitter:            0,
}

// BackoffDelay returns the nominal backoff for a 1-based retry
// attempt using BackoffPolicy with no jitter, so it is deterministic.
func BackoffDelay(attempt int) time.Duration {
	return NextDelay(attempt, BackoffPolicy, nil)
}
