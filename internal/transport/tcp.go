package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const (
	gpsdDefaultAddr = "127.0.0.1:2947"
	dialTimeout     = 2 * time.Second

	// GPSDWatchRaw asks gpsd to pass receiver bytes through untouched.
	GPSDWatchRaw = "?WATCH={\"enable\":true,\"raw\":2}\n"
)

type tcpPort struct {
	conn net.Conn
	name string
}

// Read returns io.EOF once the peer has closed the stream, so the engine
// redials.
func (p *tcpPort) Read(b []byte) (int, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	n, err := pollRead(p.conn.Read(b))
	if errors.Is(err, io.EOF) {
		return n, fmt.Errorf("transport: %s closed by peer: %w", p.name, err)
	}
	return n, err
}

func (p *tcpPort) Write(b []byte) (int, error) { return p.conn.Write(b) }
func (p *tcpPort) Close() error                { return p.conn.Close() }
func (p *tcpPort) Name() string                { return p.name }

// DialTCP connects to a raw receiver stream. With gpsdRaw set the peer is a
// gpsd daemon and is asked to relay raw bytes.
func DialTCP(ctx context.Context, addr string, gpsdRaw bool) (Port, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: dialTimeout}
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	if gpsdRaw {
		if _, err := conn.Write([]byte(GPSDWatchRaw)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("transport: gpsd watch: %w", err)
		}
	}
	return &tcpPort{conn: conn, name: "tcp:" + addr}, nil
}
