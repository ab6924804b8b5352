package connectivity

import (
	"math/rand"
	"sync"
	"time"
)

// Probe retry schedule used while offline.
const (
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 60 * time.Second
	backoffMultiplier     = 2.0
	DefaultBackoffJitter  = 0.25
)

// BackoffConfig customizes the retry schedule. Zero fields take defaults.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// Backoff yields exponentially growing probe delays with up to 25% added
// jitter, capped at Max.
type Backoff struct {
	mu       sync.Mutex
	base     time.Duration
	initial  time.Duration
	max      time.Duration
	jitter   float64
	attempts int
	rng      *rand.Rand
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultBackoffInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultBackoffMax
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{
		base:    cfg.Initial,
		initial: cfg.Initial,
		max:     cfg.Max,
		jitter:  cfg.Jitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay before the next probe and advances the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.base
	if b.jitter > 0 {
		d += time.Duration(float64(d) * b.jitter * b.rng.Float64())
	}
	b.attempts++
	b.base = min(time.Duration(float64(b.base)*backoffMultiplier), b.max)
	return d
}

// Reset returns to the initial delay; call it once a probe succeeds.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.base = b.initial
	b.attempts = 0
	b.mu.Unlock()
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
