package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestPollRead(t *testing.T) {
	cases := []struct {
		name    string
		n       int
		err     error
		wantN   int
		wantErr bool
	}{
		{"data", 3, nil, 3, false},
		{"eof passes", 0, io.EOF, 0, true},
		{"timeout means no data", 0, timeoutErr{}, 0, false},
		{"other errors pass", 0, errors.New("device gone"), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := pollRead(tc.n, tc.err)
			if n != tc.wantN || (err != nil) != tc.wantErr {
				t.Fatalf("got n=%d err=%v", n, err)
			}
		})
	}
}

func TestSerialRead(t *testing.T) {
	if n, err := serialRead(0, io.EOF); n != 0 || err != nil {
		t.Fatalf("idle tty: n=%d err=%v", n, err)
	}
	if n, err := serialRead(0, timeoutErr{}); n != 0 || err != nil {
		t.Fatalf("timeout: n=%d err=%v", n, err)
	}
	if _, err := serialRead(0, errors.New("device gone")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDialTCP_PeerCloseIsEOF(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		_ = c.Close()
	}()

	p, err := DialTCP(context.Background(), ln.Addr().String(), false)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer p.Close()

	buf := make([]byte, 16)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err = p.Read(buf)
		if err != nil {
			break
		}
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v want io.EOF after peer close", err)
	}
}

func TestTick_YieldsOneBytePerRead(t *testing.T) {
	p := NewTick()
	buf := make([]byte, 64)
	n, err := p.Read(buf)
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if n, _ := p.Write([]byte("ignored")); n != 7 {
		t.Fatalf("write n=%d", n)
	}
	_ = p.Close()
	if n, _ := p.Read(buf); n != 0 {
		t.Fatalf("closed tick read n=%d", n)
	}
}

func TestPacedWriter_PassesBytesThrough(t *testing.T) {
	var out bytes.Buffer
	w := NewPacedWriter(&out, 1000)
	for _, s := range []string{"a", "bc", "def"} {
		if _, err := w.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if out.String() != "abcdef" {
		t.Fatalf("out=%q", out.String())
	}
}

type fakeInfo struct{ fs.FileInfo }

func TestAutoDetect_PrefersUSB(t *testing.T) {
	present := map[string]bool{"/dev/ttyS0": true, "/dev/ttyUSB3": true}
	stat := func(p string) (os.FileInfo, error) {
		if present[p] {
			return fakeInfo{}, nil
		}
		return nil, os.ErrNotExist
	}
	if got := AutoDetect(stat); got != "/dev/ttyUSB3" {
		t.Fatalf("got %q", got)
	}
	if got := AutoDetect(func(string) (os.FileInfo, error) { return nil, os.ErrNotExist }); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestDialTCP_SendsGPSDRawWatchAndPolls(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	got := make(chan string, 1)
	release := make(chan struct{})
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		line, _ := bufio.NewReader(c).ReadString('\n')
		got <- line
		<-release
		_, _ = c.Write([]byte("$GP"))
	}()

	p, err := DialTCP(context.Background(), ln.Addr().String(), true)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer p.Close()

	select {
	case line := <-got:
		if line != GPSDWatchRaw {
			t.Fatalf("watch=%q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no watch request")
	}

	buf := make([]byte, 16)
	n, err := p.Read(buf)
	if n != 0 || err != nil {
		t.Fatalf("idle read n=%d err=%v", n, err)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err = p.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n > 0 {
			break
		}
	}
	if string(buf[:n]) != "$GP" {
		t.Fatalf("read %q", buf[:n])
	}
}

func TestOpen_TickAndMissingDevice(t *testing.T) {
	p, err := Open(context.Background(), Config{Tick: true})
	if err != nil || p.Name() != "tick" {
		t.Fatalf("p=%v err=%v", p, err)
	}
	if _, err := Open(context.Background(), Config{Device: "/nonexistent/tty", Baud: 4800}); err == nil {
		t.Fatalf("expected error")
	}
}
