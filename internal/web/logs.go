package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxLogLine = 4096

// LogBuffer keeps the last lines written through the standard logger so the
// UI can show them. It is installed with log.SetOutput(io.MultiWriter(...)).
type LogBuffer struct {
	mu      sync.Mutex
	lines   []string
	head    int
	n       int
	partial []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 1000
	}
	return &LogBuffer{lines: make([]string, maxLines)}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if len(b.partial) > 0 {
			b.partial = append(b.partial, data[:i]...)
			b.add(string(b.partial))
			b.partial = b.partial[:0]
		} else {
			b.add(string(data[:i]))
		}
		data = data[i+1:]
	}
	b.partial = append(b.partial, data...)
	if len(b.partial) > maxLogLine {
		b.add(string(b.partial))
		b.partial = b.partial[:0]
	}
	return len(p), nil
}

func (b *LogBuffer) add(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	if b.n == len(b.lines) {
		b.dropped++
	} else {
		b.n++
	}
	b.lines[b.head] = line
	b.head = (b.head + 1) % len(b.lines)
}

// Snapshot returns up to tail of the newest lines containing match, oldest
// first, and the number of lines that have rotated out.
func (b *LogBuffer) Snapshot(tail int, match string) ([]string, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tail <= 0 {
		tail = 200
	}
	out := make([]string, 0, min(tail, b.n))
	start := (b.head - b.n + len(b.lines)) % len(b.lines)
	for i := b.n - 1; i >= 0 && len(out) < tail; i-- {
		line := b.lines[(start+i)%len(b.lines)]
		if match != "" && !strings.Contains(line, match) {
			continue
		}
		out = append(out, line)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, b.dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

// Handler serves GET /api/logs?tail=N&match=S&format=text.
func (b *LogBuffer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()
		tail := 200
		if s := strings.TrimSpace(q.Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			tail = v
		}

		lines, dropped := b.Snapshot(tail, q.Get("match"))
		if strings.EqualFold(q.Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-store")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			for _, line := range lines {
				_, _ = fmt.Fprintln(w, line)
			}
			return
		}
		writeJSON(w, LogsResponse{
			NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
			Dropped: dropped,
			Lines:   lines,
		})
	})
}
