package web

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gpsapp/internal/engine"
	"gpsapp/internal/nav"
)

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return f
}

func TestWSStreamsStates(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(engine.State{Guidance: nav.Guidance{Status: nav.StatusNoFix}})

	ts := httptest.NewServer(Handler(Deps{Broadcaster: b, Engine: &fakeController{}}))
	defer ts.Close()
	conn := dialWS(t, ts.URL)

	f := readFrame(t, conn)
	if f.Type != "state" || f.State == nil || f.State.Guidance.Status != nav.StatusNoFix {
		t.Fatalf("first frame=%+v", f)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	b.Publish(engine.State{Guidance: nav.Guidance{Status: nav.StatusOK, Remaining: 42}})
	f = readFrame(t, conn)
	if f.State == nil || f.State.Guidance.Remaining != 42 {
		t.Fatalf("second frame=%+v", f)
	}
}

func TestWSCommands(t *testing.T) {
	ctl := &fakeController{}
	ts := httptest.NewServer(Handler(Deps{Broadcaster: NewBroadcaster(), Engine: ctl}))
	defer ts.Close()
	conn := dialWS(t, ts.URL)

	if err := conn.WriteJSON(wsCommand{Action: "skip", Delta: -1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "ack" || f.Action != "skip" || !f.OK {
		t.Fatalf("skip reply=%+v", f)
	}

	if err := conn.WriteJSON(wsCommand{Action: "reload"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "ack" || !f.OK {
		t.Fatalf("reload reply=%+v", f)
	}

	if err := conn.WriteJSON(wsCommand{Action: "launch"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "error" || f.Message != "unknown action" {
		t.Fatalf("unknown reply=%+v", f)
	}

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if len(ctl.skips) != 1 || ctl.skips[0] != -1 || ctl.reloads != 1 {
		t.Fatalf("skips=%v reloads=%d", ctl.skips, ctl.reloads)
	}
}
