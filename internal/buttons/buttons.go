// Package buttons maps two push buttons on GPIO lines to waypoint skips.
package buttons

import (
	"sync"
	"time"
)

// DefaultDebounce is how long a line must be quiet before the next press on
// it counts.
const DefaultDebounce = 200 * time.Millisecond

type Config struct {
	// Chip is a gpiochip path. Empty searches every chip for the lines.
	Chip     string
	NextPin  int
	PrevPin  int
	Debounce time.Duration
}

// SkipFunc receives +1 for the next button and -1 for the previous one. It
// reports whether the skip was accepted.
type SkipFunc func(delta int) bool

// presser turns raw line events into skips. Contact bounce shows up as a
// burst of edges on one line; only the first edge in each burst counts.
type presser struct {
	next, prev int
	debounce   time.Duration
	skip       SkipFunc

	mu   sync.Mutex
	last map[int]time.Duration
}

func newPresser(cfg Config, skip SkipFunc) *presser {
	d := cfg.Debounce
	if d <= 0 {
		d = DefaultDebounce
	}
	return &presser{
		next:     cfg.NextPin,
		prev:     cfg.PrevPin,
		debounce: d,
		skip:     skip,
		last:     make(map[int]time.Duration, 2),
	}
}

// press handles a falling edge on pin at the kernel timestamp ts.
func (p *presser) press(pin int, ts time.Duration) bool {
	var delta int
	switch pin {
	case p.next:
		delta = 1
	case p.prev:
		delta = -1
	default:
		return false
	}

	p.mu.Lock()
	prev, seen := p.last[pin]
	if seen && ts-prev < p.debounce {
		p.mu.Unlock()
		return false
	}
	p.last[pin] = ts
	p.mu.Unlock()

	return p.skip(delta)
}
