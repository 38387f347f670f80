package geocode

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BackoffConfig controls the adaptive cooldowns layered on top of the base
// rate limit.
type BackoffConfig struct {
	// TransientCooldown is the extra sleep after a transient-looking
	// failure. Default: 2s.
	TransientCooldown time.Duration

	// MaxConsecutiveFailures is the error streak that triggers the extended
	// pause. Default: 5.
	MaxConsecutiveFailures int

	// FailureCooldown is the extended pause after the streak. Default: 10s.
	FailureCooldown time.Duration
}

// DefaultBackoffConfig returns the cooldowns suited to the public
// Nominatim service.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		TransientCooldown:      2 * time.Second,
		MaxConsecutiveFailures: 5,
		FailureCooldown:        10 * time.Second,
	}
}

// Throttled wraps a Client with extra cooldowns when the service is
// struggling: a fixed pause after each transient failure, and an extended
// pause once failures accumulate. Any success resets the streak.
//
// Not safe for concurrent use; each geocoding job owns its own Throttled.
type Throttled struct {
	client      Client
	cfg         BackoffConfig
	consecutive int

	sleep func(ctx context.Context, d time.Duration)
}

// NewThrottled wraps client with the given backoff behavior.
func NewThrottled(client Client, cfg BackoffConfig) *Throttled {
	if cfg.TransientCooldown <= 0 {
		cfg.TransientCooldown = 2 * time.Second
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 5
	}
	if cfg.FailureCooldown <= 0 {
		cfg.FailureCooldown = 10 * time.Second
	}
	return &Throttled{
		client: client,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

// Geocode implements Client. Errors from the wrapped client are returned
// unchanged after any cooldown has been applied.
func (t *Throttled) Geocode(ctx context.Context, query string) (*Result, error) {
	result, err := t.client.Geocode(ctx, query)
	if err == nil {
		t.consecutive = 0
		return result, nil
	}

	t.consecutive++

	if IsTransient(err) {
		zap.L().Warn("geocode service issue, applying cooldown",
			zap.String("query", query),
			zap.Duration("cooldown", t.cfg.TransientCooldown),
			zap.Error(err),
		)
		t.sleep(ctx, t.cfg.TransientCooldown)
	}

	if t.consecutive >= t.cfg.MaxConsecutiveFailures {
		zap.L().Warn("consecutive geocode failures, extended pause",
			zap.Int("failures", t.consecutive),
			zap.Duration("pause", t.cfg.FailureCooldown),
		)
		t.sleep(ctx, t.cfg.FailureCooldown)
		t.consecutive = 0
	}

	return nil, err
}

// IsTransient reports whether an error looks like a temporary service
// issue worth a cooldown rather than a malformed query.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"timeout", "unavailable", "max retries"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d, returning early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
