package publish

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gpsapp/internal/engine"
	"gpsapp/internal/nav"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	msgs         []message
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func TestPublisherSendsRetainedGuidance(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "car/guidance")

	st := engine.State{
		Guidance:   nav.Guidance{Status: nav.StatusOK, Time: 100, Remaining: 900},
		Satellites: []engine.Satellite{{SVN: 7, Used: true}},
	}
	p.Publish(st)
	p.Publish(st)
	p.Close()

	if len(fc.msgs) != 2 {
		t.Fatalf("messages=%d want 2 (guidance + satellites, duplicate skipped)", len(fc.msgs))
	}
	if fc.msgs[0].topic != "car/guidance" || !fc.msgs[0].retained {
		t.Fatalf("first message=%+v", fc.msgs[0])
	}
	var g nav.Guidance
	if err := json.Unmarshal(fc.msgs[0].payload, &g); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if g.Remaining != 900 {
		t.Fatalf("remaining=%d", g.Remaining)
	}
	if fc.msgs[1].topic != "car/guidance/satellites" {
		t.Fatalf("second topic=%q", fc.msgs[1].topic)
	}
	if !fc.disconnected {
		t.Fatalf("expected Disconnect on Close")
	}
}

func TestPublisherStatusChangeIsNewGuidance(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "g")

	p.Publish(engine.State{Guidance: nav.Guidance{Status: nav.StatusNoRoute}})
	p.Publish(engine.State{Guidance: nav.Guidance{Status: nav.StatusNoFix}})
	p.Close()
	if len(fc.msgs) != 2 {
		t.Fatalf("messages=%d want 2", len(fc.msgs))
	}
}

func TestPublisherToleratesDeliveryErrors(t *testing.T) {
	fc := &fakeClient{err: errors.New("not connected")}
	p := newPublisher(fc, "g")
	p.Publish(engine.State{Guidance: nav.Guidance{Time: 1}})
	p.Close()
	if len(fc.msgs) != 1 {
		t.Fatalf("messages=%d", len(fc.msgs))
	}
}

func TestDialRequiresBroker(t *testing.T) {
	if _, err := Dial(Config{}); err == nil || err.Error() != "publish: broker is required" {
		t.Fatalf("err=%v", err)
	}
}
