package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLogBufferJoinsPartialWrites(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("gps conn"))
	_, _ = b.Write([]byte("ected protocol=NMEA\nroute: loaded"))

	lines, _ := b.Snapshot(10, "")
	if len(lines) != 1 || lines[0] != "gps connected protocol=NMEA" {
		t.Fatalf("lines=%q", lines)
	}

	_, _ = b.Write([]byte(" points=3\r\n\n"))
	lines, _ = b.Snapshot(10, "")
	if len(lines) != 2 || lines[1] != "route: loaded points=3" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestLogBufferRotates(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(b, "line %d\n", i)
	}
	lines, dropped := b.Snapshot(0, "")
	if dropped != 2 {
		t.Fatalf("dropped=%d", dropped)
	}
	if strings.Join(lines, ",") != "line 2,line 3,line 4" {
		t.Fatalf("lines=%q", lines)
	}

	lines, _ = b.Snapshot(2, "")
	if strings.Join(lines, ",") != "line 3,line 4" {
		t.Fatalf("tail=%q", lines)
	}
	lines, _ = b.Snapshot(10, "3")
	if len(lines) != 1 || lines[0] != "line 3" {
		t.Fatalf("match=%q", lines)
	}
}

func TestLogsHandler(t *testing.T) {
	b := NewLogBuffer(10)
	fmt.Fprintln(b, "engine: open failed err=no device")
	fmt.Fprintln(b, "gps connected protocol=TSIP")

	ts := httptest.NewServer(b.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "?tail=5&match=gps")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var out LogsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Lines) != 1 || out.Lines[0] != "gps connected protocol=TSIP" {
		t.Fatalf("lines=%q", out.Lines)
	}

	bad, err := http.Get(ts.URL + "?tail=0")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("tail=0 status=%d", bad.StatusCode)
	}
}
