package web

import (
	"sync"

	"gpsapp/internal/engine"
)

// Broadcaster fans engine snapshots out to live listeners (websocket
// clients). It keeps the most recent state so a new subscriber gets a frame
// immediately. Slow subscribers miss frames rather than stall the engine.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan engine.State
	nextID   int
	last     engine.State
	haveLast bool
	dropped  uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan engine.State)}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan engine.State) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan engine.State, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last, have := b.last, b.haveLast
	b.mu.Unlock()
	if have {
		ch <- last
	}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish implements engine.Sink.
func (b *Broadcaster) Publish(s engine.State) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			b.dropped++
		}
	}
}

// Last returns the most recently published state.
func (b *Broadcaster) Last() (engine.State, bool) {
	if b == nil {
		return engine.State{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.haveLast
}

func (b *Broadcaster) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts frames skipped because a subscriber was behind.
func (b *Broadcaster) Dropped() uint64 {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
