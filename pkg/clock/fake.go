package clock

import (
	"sync"
	"time"
)

// Fake is a deterministic clock for tests. Every Sleep or After call
// advances the clock immediately by the requested duration, so poll
// loops written against Clock run to completion without real waiting.
type Fake struct {
	mu  sync.Mutex
	now time.Time

	// Slept records every duration passed to Sleep or After, in order.
	slept []time.Duration
}

// NewFake creates a Fake starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Since returns the duration elapsed since t on the fake timeline.
func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// Sleep advances the clock by d without blocking.
func (f *Fake) Sleep(d time.Duration) {
	f.advance(d)
}

// After advances the clock by d and returns an already-fired channel.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	now := f.advance(d)
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.advance(d)
}

// Slept returns every duration waited so far, in call order.
func (f *Fake) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}

func (f *Fake) advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
	f.slept = append(f.slept, d)
	return f.now
}
