package replay

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# session 1234

START
0, 2447
10, 0a 0b
`)

	recs, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Chunk != nil {
		t.Fatalf("expected START marker (nil chunk), got %v", recs[0].Chunk)
	}
	if !reflect.DeepEqual(recs[1].Chunk, []byte("$G")) {
		t.Fatalf("unexpected chunk 1: %x", recs[1].Chunk)
	}
	if recs[2].At != 10*time.Nanosecond {
		t.Fatalf("expected At=10ns, got %s", recs[2].At)
	}
	if !reflect.DeepEqual(recs[2].Chunk, []byte{0x0a, 0x0b}) {
		t.Fatalf("unexpected chunk 2: %x", recs[2].Chunk)
	}
}

func TestReaderReadAll_InvalidLine(t *testing.T) {
	for _, in := range []string{"not-a-valid-line\n", "-5,00\n", "1,zz\n", "1,\n"} {
		if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	var chunks [][]byte
	fs := &fakeSleeper{}

	recs := []Record{
		{At: 1 * time.Second, Chunk: nil},
		{At: 1 * time.Second, Chunk: []byte{0xAA}},
		{At: 1*time.Second + 100*time.Nanosecond, Chunk: []byte{0xBB}},
		{At: 2 * time.Second, Chunk: nil},
		{At: 2*time.Second + 50*time.Nanosecond, Chunk: []byte{0xCC}},
	}

	err := Play(recs, 1.0, false, fs, func(chunk []byte) error {
		chunks = append(chunks, append([]byte(nil), chunk...))
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	want := [][]byte{{0xAA}, {0xBB}, {0xCC}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("chunks = %x, want %x", chunks, want)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [100ns]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{At: 0, Chunk: []byte{0x01}},
		{At: 100 * time.Nanosecond, Chunk: []byte{0x02}},
	}
	if err := Play(recs, 2.0, false, fs, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [50ns]", fs.slept)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0, Chunk: []byte{0x01}}}
	if err := Play(recs, 0, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected error for zero speed")
	}
	if err := Play(nil, 1, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected error for no records")
	}
}

func TestWriter_WritesExpectedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	w, err := CreateWriter(path, "abc")
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)

	if err := w.WriteChunk(time.Unix(0, 20), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteChunk() error: %v", err)
	}
	if err := w.WriteChunk(time.Unix(0, 30), nil); err != nil {
		t.Fatalf("empty chunk: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.WriteChunk(time.Unix(0, 40), []byte{1}); err == nil {
		t.Fatalf("expected error after close")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(b) != "# session abc\nSTART\n20,0102\n" {
		t.Fatalf("unexpected file contents: %q", string(b))
	}
}

func TestRecordReplay_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	now := time.Now()
	in := [][]byte{[]byte("$GPRMC,"), {0x10, 0x33, 0x10, 0x03}}
	for _, c := range in {
		if err := w.WriteChunk(now, c); err != nil {
			t.Fatalf("WriteChunk: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var out [][]byte
	fs := &fakeSleeper{}
	if err := Play(recs, 1, false, fs, func(c []byte) error {
		out = append(out, append([]byte(nil), c...))
		return nil
	}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(fs.slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", fs.slept)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("chunks mismatch\n got: %x\nwant: %x", out, in)
	}
}

func TestSummarize(t *testing.T) {
	recs := []Record{
		{At: 0},
		{At: 0, Chunk: []byte{1, 2, 3}},
		{At: 2 * time.Second, Chunk: []byte{4}},
		{At: 0},
		{At: time.Second, Chunk: []byte{5, 6}},
	}
	s := Summarize(recs)
	if s.Records != 3 || s.Bytes != 6 || s.Sessions != 2 || s.Duration != 2*time.Second {
		t.Fatalf("summary=%+v", s)
	}
}
