package retry

import (
	"petstay-backend/internal/acquire"
	"time"
)

// Policy bounds the attempts made for one target and shapes the wait
// between them.
type Policy struct {
	// MaxRetries is the total number of attempts a target gets.
	MaxRetries int `json:"max_retries"`
	// Base is the unit of linear backoff: the wait after failed attempt n
	// is Base*n.
	Base Duration `json:"base"`
	// BlockedMultiplier scales the wait after a Blocked attempt, it must be
	// greater than 1.
	BlockedMultiplier float64 `json:"blocked_multiplier"`
	// MaxDelay caps any single wait, 0 disables the cap.
	MaxDelay Duration `json:"max_delay"`
}

var DefaultPolicy = Policy{
	MaxRetries:        3,
	Base:              Duration(15 * time.Second),
	BlockedMultiplier: 2,
	MaxDelay:          Duration(2 * time.Minute),
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultPolicy.MaxRetries
	}
	if p.Base <= 0 {
		p.Base = DefaultPolicy.Base
	}
	if p.BlockedMultiplier <= 1 {
		p.BlockedMultiplier = DefaultPolicy.BlockedMultiplier
	}
	return p
}

// Delay is the wait after failed attempt `attempt` (1-indexed) when it
// failed with kind. A Blocked wait is capped at MaxDelay while every other
// wait is capped at MaxDelay/BlockedMultiplier, so at any attempt a Blocked
// failure always waits strictly longer than a generic one.
func (p Policy) Delay(attempt int, kind acquire.FailureKind) time.Duration {
	p = p.withDefaults()
	d := time.Duration(p.Base) * time.Duration(attempt)
	limit := time.Duration(p.MaxDelay)
	if kind == acquire.FailureBlocked {
		d = time.Duration(float64(d) * p.BlockedMultiplier)
	} else if limit > 0 {
		limit = time.Duration(float64(limit) / p.BlockedMultiplier)
	}
	if limit > 0 && d > limit {
		d = limit
	}
	return d
}

// Duration is a time.Duration that reads "15s" style strings from config.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}
