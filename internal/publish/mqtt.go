// Package publish mirrors guidance onto an MQTT broker so other displays in
// the vehicle can follow along.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"gpsapp/internal/engine"
)

const publishTimeout = 2 * time.Second

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// Publisher sends each new guidance record as retained JSON on Topic and
// the satellite table on Topic/satellites. Publishing never blocks the
// caller; delivery errors are logged.
type Publisher struct {
	client client
	topic  string

	mu       sync.Mutex
	lastTime int64
	lastStat string
	inflight sync.WaitGroup
}

func Dial(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("publish: broker is required")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Printf("mqtt connected broker=%s", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("mqtt connection lost broker=%s err=%v", cfg.Broker, err)
		})

	c := mqtt.NewClient(opts)
	// With connect retry enabled the token only completes once a connection
	// is made; messages published meanwhile are queued.
	c.Connect()
	return newPublisher(c, cfg.Topic), nil
}

func newPublisher(c client, topic string) *Publisher {
	return &Publisher{client: c, topic: topic}
}

// Publish implements engine.Sink. States without new guidance are skipped.
func (p *Publisher) Publish(s engine.State) {
	g := s.Guidance
	p.mu.Lock()
	if g.Time == p.lastTime && g.Status == p.lastStat {
		p.mu.Unlock()
		return
	}
	p.lastTime, p.lastStat = g.Time, g.Status
	p.mu.Unlock()

	payload, err := json.Marshal(g)
	if err != nil {
		log.Printf("mqtt: marshal guidance: %v", err)
		return
	}
	p.send(p.topic, payload)

	if len(s.Satellites) > 0 {
		sats, err := json.Marshal(s.Satellites)
		if err == nil {
			p.send(p.topic+"/satellites", sats)
		}
	}
}

func (p *Publisher) send(topic string, payload []byte) {
	tok := p.client.Publish(topic, 0, true, payload)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if !tok.WaitTimeout(publishTimeout) {
			log.Printf("mqtt: publish topic=%s timed out", topic)
			return
		}
		if err := tok.Error(); err != nil {
			log.Printf("mqtt: publish topic=%s err=%v", topic, err)
		}
	}()
}

// Close waits for outstanding publishes and disconnects.
func (p *Publisher) Close() {
	p.inflight.Wait()
	p.client.Disconnect(250)
}
