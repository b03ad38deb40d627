package gps

const (
	dle = 0x10
	etx = 0x03
)

// dleEscape doubles every DLE byte in p.
func dleEscape(p []byte) []byte {
	out := make([]byte, 0, len(p)+4)
	for _, c := range p {
		out = append(out, c)
		if c == dle {
			out = append(out, dle)
		}
	}
	return out
}

// dleUnescape collapses doubled DLE bytes.
func dleUnescape(p []byte) []byte {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		out = append(out, p[i])
		if p[i] == dle && i+1 < len(p) && p[i+1] == dle {
			i++
		}
	}
	return out
}

// dleFrame builds DLE <id> <escaped body> DLE ETX.
func dleFrame(id byte, body []byte) []byte {
	out := []byte{dle, id}
	out = append(out, dleEscape(body)...)
	return append(out, dle, etx)
}

type dleState int

const (
	dleIdle dleState = iota
	dleBody
	dleEsc
)

// dleFramer reassembles DLE ... DLE ETX frames one byte at a time. Frames
// it returns start with the packet id and alias the internal buffer.
type dleFramer struct {
	buf   [maxPacket]byte
	n     int
	state dleState
}

// push reports a complete unescaped frame, or dropped when a partial frame
// was discarded.
func (f *dleFramer) push(c byte) (frame []byte, dropped bool) {
	switch f.state {
	case dleIdle:
		if c == dle {
			f.n = 0
			f.state = dleBody
		}
	case dleBody:
		switch {
		case c == dle && f.n == 0:
			// DLE DLE where an id is expected: treat as a fresh start.
		case c == dle:
			f.state = dleEsc
		case c == etx && f.n == 0:
			f.state = dleIdle
		default:
			return nil, f.add(c)
		}
	case dleEsc:
		switch c {
		case dle:
			f.state = dleBody
			return nil, f.add(dle)
		case etx:
			f.state = dleIdle
			return f.buf[:f.n], false
		default:
			// Lone DLE inside a packet starts the next one.
			f.n = 0
			f.state = dleBody
			f.add(c)
			return nil, true
		}
	}
	return nil, false
}

func (f *dleFramer) add(c byte) bool {
	if f.n >= len(f.buf) {
		f.n = 0
		f.state = dleIdle
		return true
	}
	f.buf[f.n] = c
	f.n++
	return false
}
