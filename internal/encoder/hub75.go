package encoder

import (
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
	"github.com/coreman2200/arcaluminis-matrix/internal/panelmap"
)

// FillFunc paints logical row y of the display into buf.
type FillFunc func(y int, buf []layer.RGB48)

// HUB75Config describes a chain of identical HUB75 panels.
type HUB75Config struct {
	Panel          panelmap.Panel
	Panels         int // panels chained horizontally
	Depth          int // bits per channel
	RefreshRate    int
	Capacity       int // ring slots
	MaxBufferBytes int
	Timer          Timer
	ColorOrder     ColorOrder
	// BudgetRows splits the frame time across this many rows when sizing
	// the row. 0 uses the scan rows; the display height gives a tighter
	// per-row bound.
	BudgetRows int
}

// HUB75 turns composited rows into BCM bit-planes. It is used from the
// refresh goroutine only.
type HUB75 struct {
	cfg   HUB75Config
	in    planInput
	plan  Plan
	width int

	cursor      *panelmap.Cursor
	top, bottom []layer.RGB48

	brightness int
	shifts     int
	lut        []Timing
	prevLSB    Timing
}

// NewHUB75 validates cfg and runs the transition-bit search.
func NewHUB75(cfg HUB75Config) (*HUB75, error) {
	if cfg.Panels <= 0 {
		cfg.Panels = 1
	}
	if cfg.Timer == (Timer{}) {
		cfg.Timer = DefaultTimer
	}
	if cfg.ColorOrder == (ColorOrder{}) {
		cfg.ColorOrder = RGB
	}
	if err := cfg.ColorOrder.check(); err != nil {
		return nil, err
	}
	if err := cfg.Panel.Validate(); err != nil {
		return nil, &ConfigurationError{Reason: "panel map", Err: err}
	}
	in := planInput{
		timer:          cfg.Timer,
		depth:          cfg.Depth,
		scanRows:       cfg.Panel.ScanRows,
		budgetRows:     cfg.BudgetRows,
		wordsPerPlane:  cfg.Panel.PixelsPerLatch() * cfg.Panels,
		capacity:       cfg.Capacity,
		maxBufferBytes: cfg.MaxBufferBytes,
		refreshRate:    cfg.RefreshRate,
	}
	plan, err := in.search()
	if err != nil {
		return nil, err
	}
	width := cfg.Panel.Width * cfg.Panels
	e := &HUB75{
		cfg:        cfg,
		in:         in,
		plan:       plan,
		width:      width,
		cursor:     panelmap.NewCursor(cfg.Panel.Map, cfg.Panels, cfg.Panel.Width),
		top:        make([]layer.RGB48, width),
		bottom:     make([]layer.RGB48, width),
		brightness: 255,
	}
	e.lut = in.lut(plan, 255)
	e.prevLSB = e.lut[0]
	return e, nil
}

func (e *HUB75) Plan() Plan { return e.plan }

// Width and Height are the composited display size in pixels.
func (e *HUB75) Width() int  { return e.width }
func (e *HUB75) Height() int { return e.cfg.Panel.Height }

// Rows is the number of scan rows in a frame.
func (e *HUB75) Rows() int { return e.cfg.Panel.ScanRows }

func (e *HUB75) RefreshRate() int   { return e.plan.RefreshRate }
func (e *HUB75) TransitionBit() int { return e.plan.TransitionBit }

// Timings returns the current per-bit timing table.
func (e *HUB75) Timings() []Timing { return append([]Timing(nil), e.lut...) }

// NewSlot allocates a slot sized for this encoder.
func (e *HUB75) NewSlot() *Slot {
	s := &Slot{Planes: make([]BitPlane, e.plan.Depth)}
	for b := range s.Planes {
		_, rep := idealOnTime(b, e.plan.TransitionBit, e.plan.Unit)
		s.Planes[b] = BitPlane{
			Bit:     b,
			Words:   make([]uint16, e.in.wordsPerPlane),
			Repeats: rep,
		}
	}
	return s
}

// SetBrightness recomputes the timing table. The effective brightness is
// brightness >> shifts.
// Unchanged values leave the table alone.
func (e *HUB75) SetBrightness(brightness, shifts int) {
	brightness, shifts = clampByte(brightness), max(shifts, 0)
	if brightness == e.brightness && shifts == e.shifts {
		return
	}
	e.brightness, e.shifts = brightness, shifts
	e.lut = e.in.lut(e.plan, e.brightness>>uint(e.shifts))
}

// SetRefreshRate retimes the planes for hz with the transition bit kept and
// returns the achieved rate.
func (e *HUB75) SetRefreshRate(hz int) int {
	if hz <= 0 {
		return e.plan.RefreshRate
	}
	e.plan = e.in.retime(e.plan.TransitionBit, hz)
	e.in.refreshRate = hz
	e.lut = e.in.lut(e.plan, e.brightness>>uint(e.shifts))
	return e.plan.RefreshRate
}

// EncodeRow packs scan row into slot, pulling logical rows through fill.
func (e *HUB75) EncodeRow(scanRow int, fill FillFunc, slot *Slot) {
	slot.Row = scanRow
	addr := uint16(scanRow<<AddressShift) & AddressMask
	for b := range slot.Planes {
		p := &slot.Planes[b]
		for i := range p.Words {
			p.Words[i] = addr
		}
	}

	half := e.cfg.Panel.RowsPerHalf()
	depth := e.plan.Depth
	e.cursor.Reset()
	for e.cursor.Next() {
		y := scanRow + e.cursor.RowOffset()
		fill(y, e.top)
		fill(y+half, e.bottom)
		e.cursor.Map(func(src, dst int) {
			t := e.cfg.ColorOrder.Apply(e.top[src])
			u := e.cfg.ColorOrder.Apply(e.bottom[src])
			for b := 0; b < depth; b++ {
				shift := uint(16 - depth + b)
				var w uint16
				w |= (t[0] >> shift & 1) * BitR1
				w |= (t[1] >> shift & 1) * BitG1
				w |= (t[2] >> shift & 1) * BitB1
				w |= (u[0] >> shift & 1) * BitR2
				w |= (u[1] >> shift & 1) * BitG2
				w |= (u[2] >> shift & 1) * BitB2
				slot.Planes[b].Words[dst] |= w
			}
		})
	}

	for b := range slot.Planes {
		p := &slot.Planes[b]
		if n := len(p.Words); n > 0 {
			p.Words[n-1] |= BitLAT | BitOE
		}
		p.Timing = e.lut[b]
	}
	// The LSB plane of this row is shown while the previous row's timing
	// is still live.
	if len(slot.Planes) > 0 {
		slot.Planes[0].Timing = e.prevLSB
		e.prevLSB = e.lut[0]
	}
}

// Decoder reverses EncodeRow. It owns its own traversal state so a transport
// can decode while the encoder keeps running.
type Decoder struct {
	cfg    HUB75Config
	depth  int
	cursor *panelmap.Cursor
}

func (e *HUB75) Decoder() *Decoder {
	return &Decoder{
		cfg:    e.cfg,
		depth:  e.plan.Depth,
		cursor: panelmap.NewCursor(e.cfg.Panel.Map, e.cfg.Panels, e.cfg.Panel.Width),
	}
}

// DecodeRow calls set for every pixel carried by slot with its logical
// position and color truncated to the encoded depth.
func (d *Decoder) DecodeRow(slot *Slot, set func(x, y int, c layer.RGB48)) {
	half := d.cfg.Panel.RowsPerHalf()
	d.cursor.Reset()
	for d.cursor.Next() {
		y := slot.Row + d.cursor.RowOffset()
		d.cursor.Map(func(src, dst int) {
			var t, u [3]uint16
			for b := 0; b < d.depth && b < len(slot.Planes); b++ {
				w := slot.Planes[b].Words[dst]
				shift := uint(16 - d.depth + b)
				t[0] |= (w & BitR1 >> 0) << shift
				t[1] |= (w & BitG1 >> 1) << shift
				t[2] |= (w & BitB1 >> 2) << shift
				u[0] |= (w & BitR2 >> 3) << shift
				u[1] |= (w & BitG2 >> 4) << shift
				u[2] |= (w & BitB2 >> 5) << shift
			}
			set(src, y, d.cfg.ColorOrder.Unapply(t))
			set(src, y+half, d.cfg.ColorOrder.Unapply(u))
		})
	}
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
