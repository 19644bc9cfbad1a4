package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
)

// PinMap assigns HUB75 signals to GPIO line numbers.
type PinMap struct {
	R1, G1, B1 int
	R2, G2, B2 int
	LAT, OE    int
	A, B, C, D int
	E          int
	CLK        int
}

// DefaultPinMap is the common Raspberry Pi HAT wiring.
var DefaultPinMap = PinMap{
	R1: 5, G1: 13, B1: 6,
	R2: 12, G2: 16, B2: 23,
	LAT: 21, OE: 4,
	A: 22, B: 26, C: 27, D: 20, E: 24,
	CLK: 17,
}

// Signals lists the lines in word-bit order (bit 0 first).
func (m PinMap) Signals() [13]int {
	return [13]int{m.R1, m.G1, m.B1, m.R2, m.G2, m.B2, m.LAT, m.OE, m.A, m.B, m.C, m.D, m.E}
}

// PinBus drives the parallel HUB75 signals.
type PinBus interface {
	// Write sets every signal from an encoder word.
	Write(word uint16) error
	// Clock pulses CLK once.
	Clock() error
	Close() error
}

// HUB75Options configures a HUB75GPIO transport.
type HUB75Options struct {
	Rows        int // scan rows per frame
	RefreshRate int
	TimerHz     int
	Manual      bool
	Log         zerolog.Logger
	// Sleep waits for a plane's on-time; nil uses time.Sleep.
	Sleep func(time.Duration)
}

// HUB75GPIO bit-bangs encoded bit-planes onto a PinBus.
type HUB75GPIO struct {
	*pump
	opts HUB75Options
	bus  PinBus

	mu    sync.Mutex
	blank bool
}

func NewHUB75GPIO(bus PinBus, o HUB75Options) *HUB75GPIO {
	if o.TimerHz <= 0 {
		o.TimerHz = encoder.DefaultTimer.TimerHz
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return &HUB75GPIO{pump: newPump(o.Rows, o.RefreshRate, o.Log), opts: o, bus: bus}
}

func (t *HUB75GPIO) Start(src Source) error { return t.start(src, t.show, !t.opts.Manual) }

func (t *HUB75GPIO) Stop() error {
	err := t.halt()
	if werr := t.bus.Write(encoder.BitOE); werr != nil && err == nil {
		err = werr
	}
	return err
}

func (t *HUB75GPIO) SetRefreshRate(requested int) int { return t.setRate(requested) }

func (t *HUB75GPIO) ticks(n uint32) time.Duration {
	return time.Duration(uint64(n) * uint64(time.Second) / uint64(t.opts.TimerHz))
}

func (t *HUB75GPIO) show(slot *encoder.Slot) error {
	t.mu.Lock()
	t.blank = false
	t.mu.Unlock()
	for _, p := range slot.Planes {
		for r := 0; r < p.Repeats; r++ {
			if err := t.plane(p); err != nil {
				return fmt.Errorf("row %d plane %d: %w", slot.Row, p.Bit, err)
			}
		}
	}
	return nil
}

// plane shifts one pass with the panel blanked, latches it, then enables
// the output for the on-time.
func (t *HUB75GPIO) plane(p encoder.BitPlane) error {
	for _, w := range p.Words {
		if err := t.bus.Write((w &^ encoder.BitLAT) | encoder.BitOE); err != nil {
			return err
		}
		if err := t.bus.Clock(); err != nil {
			return err
		}
	}
	if len(p.Words) == 0 {
		return nil
	}
	last := p.Words[len(p.Words)-1]
	if err := t.bus.Write(last | encoder.BitLAT | encoder.BitOE); err != nil {
		return err
	}
	if p.Timing.OnTime == 0 {
		return t.bus.Write(last&^encoder.BitLAT | encoder.BitOE)
	}
	if err := t.bus.Write(last &^ (encoder.BitLAT | encoder.BitOE)); err != nil {
		return err
	}
	t.opts.Sleep(t.ticks(p.Timing.OnTime))
	return t.bus.Write(last&^encoder.BitLAT | encoder.BitOE)
}

// RecoverFromUnderrun holds OE high until the next row is shown.
func (t *HUB75GPIO) RecoverFromUnderrun() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.blank {
		return
	}
	t.blank = true
	if err := t.bus.Write(encoder.BitOE); err != nil {
		t.log.Warn().Err(err).Msg("hub75 blank failed")
	}
}

// Blanked reports whether output is held off after an underrun.
func (t *HUB75GPIO) Blanked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blank
}
