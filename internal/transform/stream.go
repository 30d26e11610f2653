package transform

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// UnitFunc is called once per emitted unit, in order
type UnitFunc func(unit string, position, total int)

// StreamConfig controls the artificial per-unit delay.
// A zero MaxDelay disables the delay.
type StreamConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Streamer emits a transform result unit by unit
type Streamer struct {
	minDelay time.Duration
	maxDelay time.Duration
}

// NewStreamer creates a new Streamer
func NewStreamer(cfg StreamConfig) *Streamer {
	minDelay, maxDelay := cfg.MinDelay, cfg.MaxDelay
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Streamer{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

// Stream computes the result eagerly and then walks FormattedResult rune by
// rune. Cancellation of ctx is checked before each delay and again before
// each call to onUnit; once observed, Stream returns domain.ErrCancelled.
func (s *Streamer) Stream(ctx context.Context, input string, onUnit UnitFunc) (*Result, error) {
	result, err := Transform(input)
	if err != nil {
		return nil, err
	}

	units := []rune(result.FormattedResult)
	total := len(units)

	for position, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}

		if err := s.wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}

		if onUnit != nil {
			onUnit(string(unit), position, total)
		}
	}

	return result, nil
}

func (s *Streamer) wait(ctx context.Context) error {
	delay := s.nextDelay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Streamer) nextDelay() time.Duration {
	if s.maxDelay <= 0 {
		return 0
	}
	spread := s.maxDelay - s.minDelay
	if spread <= 0 {
		return s.minDelay
	}
	return s.minDelay + rand.N(spread+1)
}
