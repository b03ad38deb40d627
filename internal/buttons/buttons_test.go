package buttons

import (
	"testing"
	"time"
)

func TestPresserMapsPins(t *testing.T) {
	var got []int
	p := newPresser(Config{NextPin: 17, PrevPin: 27}, func(d int) bool {
		got = append(got, d)
		return true
	})

	if !p.press(17, 0) {
		t.Fatalf("next press rejected")
	}
	if !p.press(27, time.Millisecond) {
		t.Fatalf("prev press rejected")
	}
	if p.press(22, 2*time.Millisecond) {
		t.Fatalf("unknown pin accepted")
	}
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Fatalf("deltas=%v", got)
	}
}

func TestPresserDebouncesPerLine(t *testing.T) {
	n := 0
	p := newPresser(Config{NextPin: 17, PrevPin: 27, Debounce: 100 * time.Millisecond}, func(int) bool {
		n++
		return true
	})

	p.press(17, time.Second)
	p.press(17, time.Second+10*time.Millisecond)
	p.press(27, time.Second+20*time.Millisecond)
	p.press(17, time.Second+150*time.Millisecond)
	if n != 3 {
		t.Fatalf("presses=%d want 3", n)
	}
}

func TestPresserDefaultDebounce(t *testing.T) {
	p := newPresser(Config{NextPin: 1, PrevPin: 2}, func(int) bool { return true })
	if p.debounce != DefaultDebounce {
		t.Fatalf("debounce=%s", p.debounce)
	}
}
