//go:build linux

package buttons

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "gpsapp-buttons"

// Watch requests both lines as pulled-up inputs and calls skip on each
// debounced press until ctx is done.
func Watch(ctx context.Context, cfg Config, skip SkipFunc) error {
	if cfg.NextPin <= 0 || cfg.PrevPin <= 0 {
		return fmt.Errorf("buttons: invalid pins next=%d prev=%d", cfg.NextPin, cfg.PrevPin)
	}
	p := newPresser(cfg, skip)

	handler := func(evt gpiocdev.LineEvent) {
		if evt.Type != gpiocdev.LineEventFallingEdge {
			return
		}
		delta := 1
		if evt.Offset == p.prev {
			delta = -1
		}
		if p.press(evt.Offset, evt.Timestamp) {
			log.Printf("buttons: skip delta=%d", delta)
		}
	}

	lines, err := requestLines(cfg.Chip, []int{cfg.NextPin, cfg.PrevPin}, handler)
	if err != nil {
		return err
	}
	defer lines.Close()
	log.Printf("buttons: watching next=%d prev=%d", cfg.NextPin, cfg.PrevPin)

	<-ctx.Done()
	return ctx.Err()
}

func requestLines(chip string, offsets []int, h gpiocdev.EventHandler) (*gpiocdev.Lines, error) {
	candidates := []string{chip}
	if chip == "" {
		candidates = chipCandidates()
	}
	var lastErr error
	for _, c := range candidates {
		lines, err := gpiocdev.RequestLines(c, offsets,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithEventHandler(h),
			gpiocdev.WithConsumer(consumer),
		)
		if err != nil {
			lastErr = err
			continue
		}
		return lines, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no gpio chip found")
	}
	return nil, fmt.Errorf("buttons: request lines %v: %w", offsets, lastErr)
}

// chipCandidates lists /dev/gpiochip*, header chips first. On a Pi 5 the
// header can sit on gpiochip4.
func chipCandidates() []string {
	out := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "gpiochip") {
			continue
		}
		p := filepath.Join("/dev", name)
		if p != out[0] && p != out[1] {
			out = append(out, p)
		}
	}
	return out
}
