package realtime

import "time"

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5

	ceilingDelay = time.Duration(1 << 62)
)

// Backoff is the exponential reconnection policy:
// delay(n) = BaseDelay * 2^(n-1), optionally capped at MaxDelay.
type Backoff struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration // zero means uncapped
	MaxAttempts int
}

// DefaultBackoff returns a 1s base, uncapped, 5 attempt policy.
func DefaultBackoff() Backoff {
	return Backoff{BaseDelay: DefaultBaseDelay, MaxAttempts: DefaultMaxAttempts}
}

// Delay returns the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	delay := base
	for i := 1; i < attempt && delay < ceilingDelay; i++ {
		delay *= 2
	}
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}

// Exhausted reports whether attempt n is past the configured maximum.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt > b.MaxAttempts
}
