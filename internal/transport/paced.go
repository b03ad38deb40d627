package transport

import (
	"io"

	"go.uber.org/ratelimit"
)

// PacedWriter spaces outbound writes so a decoder that answers every frame
// cannot flood a slow serial link.
type PacedWriter struct {
	w  io.Writer
	rl ratelimit.Limiter
}

// NewPacedWriter allows perSecond writes per second. perSecond <= 0
// disables pacing.
func NewPacedWriter(w io.Writer, perSecond int) *PacedWriter {
	rl := ratelimit.NewUnlimited()
	if perSecond > 0 {
		rl = ratelimit.New(perSecond)
	}
	return &PacedWriter{w: w, rl: rl}
}

func (p *PacedWriter) Write(b []byte) (int, error) {
	p.rl.Take()
	return p.w.Write(b)
}
