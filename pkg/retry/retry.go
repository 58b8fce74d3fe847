// Package retry provides bounded retries with exponential backoff for
// calls to external CLIs (oci, scontrol, manage.py).
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/felixproject/felix/pkg/clock"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts bounds the total attempts, first call included. Zero
	// retries until the context is cancelled.
	MaxAttempts int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the wait between retries.
	MaxDelay time.Duration

	// Multiplier grows the wait after each retry.
	Multiplier float64

	// Jitter spreads each wait by +/- the given fraction so parallel
	// workers do not hit a CLI in lockstep.
	Jitter float64

	// Clock drives the waits. Nil means real time.
	Clock clock.Clock
}

// CLIConfig returns retry settings for external command invocations.
func CLIConfig() Config {
	return Config{
		MaxAttempts:  4,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return cfg
}

// Do runs fn until it succeeds, the attempts run out, or ctx ends. The
// last attempt's error is returned; on cancellation it is joined with
// the context error.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(err, lastErr)
			}
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-cfg.Clock.After(jittered(delay, cfg.Jitter)):
		}
		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}
}

// DoWithValue is Do for functions that return a value.
func DoWithValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var v T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	})
	return v, err
}

func jittered(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	span := float64(d) * frac
	return d + time.Duration(rand.Float64()*2*span-span)
}
