package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// RetryAfterCap is the longest upstream Retry-After hint worth waiting
	// for inside one request.
	RetryAfterCap time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig suits the rate-limited lookup APIs (maps, factors, queue):
// one retry with short backoff, breaker opens after half of ten calls fail.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     800 * time.Millisecond,
		RetryMultiplier:     2.0,
		RetryAfterCap:       2 * time.Second,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// DocumentAIConfig is for the billed, slow document model: a single retry
// after a longer pause and a breaker that trips on fewer samples.
func DocumentAIConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryInitialBackoff = time.Second
	cfg.RetryMaxBackoff = 4 * time.Second
	cfg.RetryAfterCap = 5 * time.Second
	cfg.BreakerMinRequests = 5
	cfg.BreakerOpenTimeout = time.Minute
	return cfg
}

// NoRetry keeps the breaker but runs each call once.
func NoRetry() Config {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 1
	return cfg
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = c.RetryInitialBackoff
	}
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}
	if c.RetryAfterCap <= 0 {
		c.RetryAfterCap = def.RetryAfterCap
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return c
}
