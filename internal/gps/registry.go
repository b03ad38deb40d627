package gps

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return "none"
	}
}

// Protocol describes one wire protocol: its serial line settings and how to
// build a decoder for it.
type Protocol struct {
	Name   string
	Baud   int
	Parity Parity
	// Pseudo protocols do not read a physical port.
	Pseudo bool
	New    func(env Env) Decoder
}

const DefaultProtocol = "NMEA"

type Registry struct {
	byName map[string]Protocol
}

func NewRegistry(protos ...Protocol) (*Registry, error) {
	r := &Registry{byName: make(map[string]Protocol, len(protos))}
	for _, p := range protos {
		key := strings.ToUpper(strings.TrimSpace(p.Name))
		if key == "" || p.New == nil {
			return nil, fmt.Errorf("gps: invalid protocol %q", p.Name)
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("gps: duplicate protocol %q", p.Name)
		}
		r.byName[key] = p
	}
	return r, nil
}

// DefaultRegistry holds every built-in protocol.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Protocol{Name: "NMEA", Baud: 4800, Parity: ParityNone, New: func(e Env) Decoder { return NewNMEA(e) }},
		Protocol{Name: "TSIP", Baud: 9600, Parity: ParityOdd, New: func(e Env) Decoder { return NewTSIP(e) }},
		Protocol{Name: "GARMIN", Baud: 9600, Parity: ParityNone, New: func(e Env) Decoder { return NewGarmin(e) }},
		Protocol{Name: "EARTHMATE", Baud: 9600, Parity: ParityNone, New: func(e Env) Decoder { return NewZodiac(e) }},
		Protocol{Name: "ZODIAC", Baud: 9600, Parity: ParityNone, New: func(e Env) Decoder { return NewZodiac(e) }},
		Protocol{Name: "TAIP", Baud: 4800, Parity: ParityNone, New: func(e Env) Decoder { return NewTAIP(e) }},
		Protocol{Name: "GPSD", Baud: 0, Parity: ParityNone, New: func(e Env) Decoder { return NewGPSD(e) }},
		Protocol{Name: "TRACKLOG", Baud: 0, Parity: ParityNone, Pseudo: true, New: func(e Env) Decoder { return NewTracklog(e) }},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(name string) (Protocol, bool) {
	p, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// Select returns the named protocol, falling back to NMEA for unknown names.
// fellBack reports whether the fallback was taken.
func (r *Registry) Select(name string) (p Protocol, fellBack bool) {
	if p, ok := r.Lookup(name); ok {
		return p, false
	}
	log.Printf("gps: unknown protocol %q, falling back to %s", name, DefaultProtocol)
	p, _ = r.Lookup(DefaultProtocol)
	return p, true
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for k := range r.byName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
