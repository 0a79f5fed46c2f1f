package notify

import (
	"math"
	"time"
)

// ReconnectPolicy computes the delay before each reconnect attempt.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// DefaultReconnectPolicy is capped exponential backoff from 3s to 30s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialDelay: 3 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// FixedReconnectPolicy always waits d.
func FixedReconnectPolicy(d time.Duration) ReconnectPolicy {
	return ReconnectPolicy{InitialDelay: d, MaxDelay: d, Multiplier: 1}
}

// Delay returns the wait before attempt (0-based). rnd returns values in
// [0, 1) and may be nil when Jitter is zero.
func (p ReconnectPolicy) Delay(attempt int, rnd func() float64) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	if attempt < 0 {
		attempt = 0
	}

	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 && rnd != nil {
		d += d * p.Jitter * (2*rnd() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
