package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gpsapp/internal/engine"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	// The UI is served from the device itself, but phones on the same
	// network reach it by address, so any origin is accepted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand is a client request on the live socket.
type wsCommand struct {
	Action string `json:"action"` // "skip", "reload"
	Delta  int    `json:"delta,omitempty"`
}

type wsFrame struct {
	Type    string        `json:"type"` // "state", "ack", "error"
	State   *engine.State `json:"state,omitempty"`
	Action  string        `json:"action,omitempty"`
	OK      bool          `json:"ok,omitempty"`
	Message string        `json:"message,omitempty"`
}

// handleWS streams every published engine state to the client and accepts
// skip and reload commands from it.
func handleWS(b *Broadcaster, ctl Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b == nil {
			http.Error(w, "live updates unavailable", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		id, states := b.Subscribe(4)
		defer b.Unsubscribe(id)

		replies := make(chan wsFrame, 4)
		done := make(chan struct{})
		quit := make(chan struct{})
		defer close(quit)
		go func() {
			defer close(done)
			readCommands(conn, ctl, replies, quit)
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			var frame wsFrame
			select {
			case <-done:
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				frame = wsFrame{Type: "state", State: &st}
			case frame = <-replies:
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func readCommands(conn *websocket.Conn, ctl Controller, replies chan<- wsFrame, quit <-chan struct{}) {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := wsFrame{Type: "ack", Action: cmd.Action}
		switch {
		case ctl == nil:
			reply = wsFrame{Type: "error", Action: cmd.Action, Message: "engine unavailable"}
		case cmd.Action == "skip":
			if cmd.Delta == 0 {
				cmd.Delta = 1
			}
			reply.OK = ctl.Skip(cmd.Delta)
		case cmd.Action == "reload":
			reply.OK = ctl.ReloadRoute()
		default:
			reply = wsFrame{Type: "error", Action: cmd.Action, Message: "unknown action"}
		}
		select {
		case replies <- reply:
		case <-quit:
			return
		}
	}
}
