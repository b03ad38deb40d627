package transport

import "sync/atomic"

// Tick is a Port for pseudo-protocols that read their own input. Each Read
// yields exactly one zero byte so the decoder advances once per poll.
// Writes are discarded.
type Tick struct {
	closed atomic.Bool
}

func NewTick() *Tick { return &Tick{} }

func (t *Tick) Read(b []byte) (int, error) {
	if t.closed.Load() || len(b) == 0 {
		return 0, nil
	}
	b[0] = 0
	return 1, nil
}

func (t *Tick) Write(b []byte) (int, error) { return len(b), nil }

func (t *Tick) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *Tick) Name() string { return "tick" }
