package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
	"github.com/coreman2200/arcaluminis-matrix/internal/panelmap"
)

// queueSource hands out a fixed list of slots.
type queueSource struct {
	slots     []*encoder.Slot
	consumed  int
	wakes     int
	underruns int
}

func (q *queueSource) NextReadSlot() (*encoder.Slot, bool) {
	if q.consumed >= len(q.slots) {
		return nil, false
	}
	return q.slots[q.consumed], true
}
func (q *queueSource) MarkSlotConsumed()    { q.consumed++ }
func (q *queueSource) OnCalculationNeeded() { q.wakes++ }
func (q *queueSource) OnUnderrun()          { q.underruns++ }

func apaRows(t *testing.T, w, h int, c layer.RGB48) (*encoder.APA102, []*encoder.Slot) {
	t.Helper()
	e, err := encoder.NewAPA102(encoder.APA102Config{Width: w, Height: h, RefreshRate: 60, Mode: encoder.GBCNone})
	require.NoError(t, err)
	var out []*encoder.Slot
	for y := 0; y < h; y++ {
		s := e.NewSlot()
		e.EncodeRow(y, func(_ int, buf []layer.RGB48) {
			for i := range buf {
				buf[i] = c
			}
		}, s)
		out = append(out, s)
	}
	return e, out
}

func TestSPIAPA102WritesFrame(t *testing.T) {
	var buf bytes.Buffer
	_, slots := apaRows(t, 2, 2, layer.RGB48{R: 0xFFFF})
	tr, err := NewSPIAPA102(spitest.NewRecordRaw(&buf), APA102Options{Width: 2, Height: 2, RefreshRate: 60, Manual: true})
	require.NoError(t, err)

	src := &queueSource{slots: slots}
	require.NoError(t, tr.Start(src))
	assert.ErrorIs(t, tr.Start(src), ErrRunning)

	assert.True(t, tr.Tick())
	assert.True(t, tr.Tick())
	assert.False(t, tr.Tick())
	assert.Equal(t, 1, src.underruns)
	assert.Equal(t, 2, src.wakes)
	require.NoError(t, tr.Stop())
	assert.ErrorIs(t, tr.Stop(), ErrNotRunning)

	px := []byte{0xFF, 0, 0, 255}
	var want []byte
	want = append(want, 0, 0, 0, 0)
	for i := 0; i < 4; i++ {
		want = append(want, px...)
	}
	want = append(want, 0xFF, 0xFF, 0xFF, 0xFF)
	assert.Equal(t, want, buf.Bytes())
	assert.Equal(t, uint64(2), tr.Shown())
	assert.Equal(t, uint64(1), tr.Starved())
}

func TestSPIAPA102BlankFrame(t *testing.T) {
	var buf bytes.Buffer
	tr, err := NewSPIAPA102(spitest.NewRecordRaw(&buf), APA102Options{Width: 1, Height: 1, Manual: true})
	require.NoError(t, err)
	tr.RecoverFromUnderrun()
	assert.Equal(t, []byte{0, 0, 0, 0, 0xE0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}, buf.Bytes())
}

func TestPeriphAPA102WritesOncePerFrame(t *testing.T) {
	var buf bytes.Buffer
	e, slots := apaRows(t, 2, 2, layer.RGB48{G: 0xFFFF})
	tr, err := NewPeriphAPA102(spitest.NewRecordRaw(&buf), e.Decoder(), APA102Options{Width: 2, Height: 2, Manual: true})
	require.NoError(t, err)
	require.NoError(t, tr.Start(&queueSource{slots: slots}))
	before := buf.Len()

	require.True(t, tr.Tick())
	assert.Equal(t, before, buf.Len(), "nothing written before the last row")
	require.True(t, tr.Tick())
	assert.Greater(t, buf.Len(), before)
	assert.Equal(t, []byte{0, 255, 0, 0, 255, 0, 0, 255, 0, 0, 255, 0}, tr.rgb)
}

func TestSimDecodesHUB75(t *testing.T) {
	p, _ := panelmap.Lookup("32x16-mod8")
	e, err := encoder.NewHUB75(encoder.HUB75Config{Panel: p, Depth: 4, RefreshRate: 100, Capacity: 4})
	require.NoError(t, err)

	var slots []*encoder.Slot
	for r := 0; r < e.Rows(); r++ {
		s := e.NewSlot()
		e.EncodeRow(r, func(y int, buf []layer.RGB48) {
			for x := range buf {
				buf[x] = layer.RGB48{}
			}
			if y == 3 {
				buf[7] = layer.RGB48{B: 0xFFFF}
			}
		}, s)
		slots = append(slots, s)
	}
	sim := NewSim(SimOptions{Width: e.Width(), Height: e.Height(), Rows: e.Rows(), Decoder: e.Decoder(), Manual: true})
	src := &queueSource{slots: slots}
	require.NoError(t, sim.Start(src))
	for sim.Tick() {
	}
	assert.Equal(t, uint64(1), sim.Frames())
	assert.Equal(t, uint16(0xF000), sim.Pixel(7, 3).B)
	assert.Equal(t, layer.RGB48{}, sim.Pixel(8, 3))

	assert.False(t, sim.Blanked())
	sim.RecoverFromUnderrun()
	assert.True(t, sim.Blanked())
	assert.Equal(t, uint64(1), sim.Blanks())
}

func TestSimPacesInBackground(t *testing.T) {
	_, slots := apaRows(t, 1, 1, layer.RGB48{})
	sim := NewSim(SimOptions{Width: 1, Height: 1, Rows: 1, RefreshRate: 1000})
	src := &lockedSource{q: queueSource{slots: slots}}
	require.NoError(t, sim.Start(src))
	assert.Eventually(t, func() bool { return src.underruns() > 0 }, time.Second, time.Millisecond)
	require.NoError(t, sim.Stop())
	assert.Equal(t, uint64(1), sim.Shown())

	assert.Equal(t, 500, sim.SetRefreshRate(500))
	assert.Equal(t, 500, sim.RefreshRate())
}

// busRecorder records every word written and every clock pulse.
type busRecorder struct {
	words  []uint16
	clocks int
	fail   error
}

func (b *busRecorder) Write(w uint16) error {
	b.words = append(b.words, w)
	return b.fail
}
func (b *busRecorder) Clock() error { b.clocks++; return nil }
func (b *busRecorder) Close() error { return nil }

func TestHUB75GPIOShiftsLatchesAndWaits(t *testing.T) {
	var waits []time.Duration
	bus := &busRecorder{}
	tr := NewHUB75GPIO(bus, HUB75Options{Rows: 1, TimerHz: 1_000_000, Manual: true, Sleep: func(d time.Duration) { waits = append(waits, d) }})

	slot := &encoder.Slot{Planes: []encoder.BitPlane{
		{Bit: 0, Words: []uint16{encoder.BitR1, encoder.BitLAT | encoder.BitOE}, Timing: encoder.Timing{Period: 20, OnTime: 10}, Repeats: 1},
		{Bit: 1, Words: []uint16{0, encoder.BitLAT | encoder.BitOE}, Timing: encoder.Timing{Period: 30, OnTime: 20}, Repeats: 2},
	}}
	require.NoError(t, tr.Start(&queueSource{slots: []*encoder.Slot{slot}}))
	require.True(t, tr.Tick())

	assert.Equal(t, 6, bus.clocks)
	assert.Equal(t, []time.Duration{10 * time.Microsecond, 20 * time.Microsecond, 20 * time.Microsecond}, waits)
	// Data words are shifted with the output blanked and no latch.
	assert.Equal(t, encoder.BitR1|encoder.BitOE, bus.words[0])
	assert.Equal(t, encoder.BitOE, bus.words[1])
	// Latch pulse, then enable.
	assert.Equal(t, encoder.BitLAT|encoder.BitOE, bus.words[2])
	assert.Equal(t, uint16(0), bus.words[3])
}

func TestHUB75GPIOUnderrunBlanksOnce(t *testing.T) {
	bus := &busRecorder{}
	tr := NewHUB75GPIO(bus, HUB75Options{Rows: 1, Manual: true, Sleep: func(time.Duration) {}})
	tr.RecoverFromUnderrun()
	tr.RecoverFromUnderrun()
	assert.True(t, tr.Blanked())
	assert.Equal(t, []uint16{encoder.BitOE}, bus.words)
}

func TestHUB75GPIOReportsBusErrors(t *testing.T) {
	bus := &busRecorder{fail: errors.New("boom")}
	tr := NewHUB75GPIO(bus, HUB75Options{Rows: 1, Manual: true})
	slot := &encoder.Slot{Planes: []encoder.BitPlane{{Words: []uint16{0}, Repeats: 1}}}
	assert.Error(t, tr.show(slot))
}

func TestPeriphPinBus(t *testing.T) {
	var pins [13]*gpiotest.Pin
	var outs [13]gpio.PinOut
	for i := range pins {
		pins[i] = &gpiotest.Pin{N: "sig", Num: i}
		outs[i] = pins[i]
	}
	clk := &gpiotest.Pin{N: "clk"}
	bus := NewPeriphPinBus(outs, clk)

	require.NoError(t, bus.Write(encoder.BitG1|encoder.BitOE|(3<<encoder.AddressShift)))
	for i, p := range pins {
		want := i == 1 || i == 7 || i == 8 || i == 9
		assert.Equal(t, gpio.Level(want), p.Read(), "pin %d", i)
	}
	require.NoError(t, bus.Clock())
	assert.Equal(t, gpio.Low, clk.Read())

	require.NoError(t, bus.Close())
	assert.Equal(t, gpio.High, pins[7].Read())
	assert.Equal(t, gpio.Low, pins[1].Read())
}

type fakeLines struct {
	sets   [][]int
	closed bool
}

func (f *fakeLines) SetValues(v []int) error {
	f.sets = append(f.sets, append([]int(nil), v...))
	return nil
}
func (f *fakeLines) Close() error { f.closed = true; return nil }

func TestCdevPinBus(t *testing.T) {
	lines := &fakeLines{}
	bus := NewCdevPinBus(lines)
	require.NoError(t, bus.Write(encoder.BitR2|(1<<encoder.AddressShift)))
	require.NoError(t, bus.Clock())
	require.Len(t, lines.sets, 3)
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0}, lines.sets[0])
	assert.Equal(t, 1, lines.sets[1][13])
	assert.Equal(t, 0, lines.sets[2][13])

	require.NoError(t, bus.Close())
	assert.True(t, lines.closed)
	assert.Equal(t, 1, lines.sets[3][7])
}

func TestPinMapSignalsOrder(t *testing.T) {
	s := DefaultPinMap.Signals()
	assert.Equal(t, DefaultPinMap.R1, s[0])
	assert.Equal(t, DefaultPinMap.OE, s[7])
	assert.Equal(t, DefaultPinMap.E, s[12])
}
