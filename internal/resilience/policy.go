package resilience

import (
	"time"

	"github.com/david/eu-grants-monitor/internal/config"
)

// Policy bounds retries and configures the per-operation circuit breakers.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	BreakerInterval     time.Duration
	BreakerHalfOpenMax  uint32
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,

		BreakerEnabled:      true,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  30 * time.Second,
		BreakerInterval:     60 * time.Second,
		BreakerHalfOpenMax:  3,
	}
}

// PolicyFromConfig maps the resilience section of the config file.
func PolicyFromConfig(c config.ResilienceConfig) Policy {
	return Policy{
		MaxAttempts:         c.RetryMaxAttempts,
		InitialBackoff:      time.Duration(c.RetryInitialBackoffMS) * time.Millisecond,
		MaxBackoff:          time.Duration(c.RetryMaxBackoffMS) * time.Millisecond,
		Multiplier:          c.RetryMultiplier,
		BreakerEnabled:      c.BreakerEnabled,
		BreakerMinRequests:  c.BreakerMinRequests,
		BreakerFailureRatio: c.BreakerFailureRatio,
		BreakerOpenTimeout:  time.Duration(c.BreakerTimeoutSec) * time.Second,
		BreakerInterval:     time.Duration(c.BreakerIntervalSec) * time.Second,
		BreakerHalfOpenMax:  c.BreakerMaxRequests,
	}.normalize()
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMax == 0 {
		out.BreakerHalfOpenMax = def.BreakerHalfOpenMax
	}
	return out
}
