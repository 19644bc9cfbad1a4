package transport

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
)

// SimOptions configures a Sim.
type SimOptions struct {
	Width, Height int
	Rows          int // rows per frame as produced by the encoder
	RefreshRate   int
	Decoder       RowDecoder
	// Manual leaves pacing to the caller through Tick.
	Manual bool
	Log    zerolog.Logger
}

// Sim decodes rows into an in-memory frame instead of driving hardware.
type Sim struct {
	*pump
	opts SimOptions

	mu      sync.Mutex
	frame   []layer.RGB48
	frames  atomic.Uint64
	blanks  atomic.Uint64
	blanked atomic.Bool
}

func NewSim(o SimOptions) *Sim {
	return &Sim{
		pump:  newPump(o.Rows, o.RefreshRate, o.Log),
		opts:  o,
		frame: make([]layer.RGB48, o.Width*o.Height),
	}
}

func (s *Sim) Start(src Source) error { return s.start(src, s.show, !s.opts.Manual) }
func (s *Sim) Stop() error            { return s.halt() }

func (s *Sim) SetRefreshRate(requested int) int { return s.setRate(requested) }

func (s *Sim) RecoverFromUnderrun() {
	s.blanked.Store(true)
	s.blanks.Add(1)
}

func (s *Sim) show(slot *encoder.Slot) error {
	s.blanked.Store(false)
	if s.opts.Decoder != nil {
		s.mu.Lock()
		s.opts.Decoder.DecodeRow(slot, func(x, y int, c layer.RGB48) {
			if x >= 0 && y >= 0 && x < s.opts.Width && y < s.opts.Height {
				s.frame[y*s.opts.Width+x] = c
			}
		})
		s.mu.Unlock()
	}
	if slot.Row == s.rows-1 {
		n := s.frames.Add(1)
		if e := s.log.Trace(); e.Enabled() {
			r, g, b := s.average()
			e.Uint64("frame", n).Uint16("avg_r", r).Uint16("avg_g", g).Uint16("avg_b", b).Msg("sim frame")
		}
	}
	return nil
}

func (s *Sim) average() (uint16, uint16, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var r, g, b uint64
	for _, c := range s.frame {
		r += uint64(c.R)
		g += uint64(c.G)
		b += uint64(c.B)
	}
	n := uint64(max(len(s.frame), 1))
	return uint16(r / n), uint16(g / n), uint16(b / n)
}

// Frame returns a copy of the simulated display.
func (s *Sim) Frame() []layer.RGB48 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]layer.RGB48(nil), s.frame...)
}

// Pixel is the simulated color at (x, y).
func (s *Sim) Pixel(x, y int) layer.RGB48 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame[y*s.opts.Width+x]
}

func (s *Sim) Frames() uint64 { return s.frames.Load() }
func (s *Sim) Blanks() uint64 { return s.blanks.Load() }

// Blanked reports whether the output is blanked after an underrun.
func (s *Sim) Blanked() bool { return s.blanked.Load() }
