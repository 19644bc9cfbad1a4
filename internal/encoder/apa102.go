package encoder

import (
	"strings"

	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
)

// GBCMode selects how the APA102 5-bit global brightness field is used.
type GBCMode string

const (
	// GBCDefault picks the field per pixel to keep 16-bit precision.
	GBCDefault GBCMode = "default"
	// GBCSimple maps brightness onto the field and sends 8-bit channels.
	GBCSimple GBCMode = "simple"
	// GBCBrightOnly uses only the top five brightness bits.
	GBCBrightOnly GBCMode = "brightonly"
	// GBCNone pins the field at full and scales the channels.
	GBCNone GBCMode = "none"
)

// ParseGBCMode accepts the mode names above; empty means GBCDefault.
func ParseGBCMode(s string) (GBCMode, error) {
	switch m := GBCMode(strings.ToLower(s)); m {
	case "":
		return GBCDefault, nil
	case GBCDefault, GBCSimple, GBCBrightOnly, GBCNone:
		return m, nil
	}
	return "", Configf("unknown APA102 GBC mode %q", s)
}

// APA102Config describes a matrix of APA102 pixels wired row after row.
type APA102Config struct {
	Width, Height int
	RefreshRate   int
	ColorOrder    ColorOrder
	Mode          GBCMode
	// Serpentine reverses every odd row, for strips folded back and forth.
	Serpentine bool
}

// APA102 encodes one display row per slot as 4-byte pixel frames.
type APA102 struct {
	cfg        APA102Config
	row        []layer.RGB48
	brightness int
	shifts     int
}

func NewAPA102(cfg APA102Config) (*APA102, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, Configf("APA102 size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.RefreshRate <= 0 {
		return nil, Configf("refresh rate %d must be positive", cfg.RefreshRate)
	}
	if cfg.ColorOrder == (ColorOrder{}) {
		cfg.ColorOrder = BGR
	}
	if err := cfg.ColorOrder.check(); err != nil {
		return nil, err
	}
	mode, err := ParseGBCMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	return &APA102{cfg: cfg, row: make([]layer.RGB48, cfg.Width), brightness: 255}, nil
}

func (e *APA102) Width() int         { return e.cfg.Width }
func (e *APA102) Height() int        { return e.cfg.Height }
func (e *APA102) Rows() int          { return e.cfg.Height }
func (e *APA102) RefreshRate() int   { return e.cfg.RefreshRate }
func (e *APA102) TransitionBit() int { return 0 }

// SetRefreshRate records the pacing rate; serial pixels have no timing
// table to retime.
func (e *APA102) SetRefreshRate(hz int) int {
	if hz > 0 {
		e.cfg.RefreshRate = hz
	}
	return e.cfg.RefreshRate
}

func (e *APA102) SetBrightness(brightness, shifts int) {
	e.brightness = clampByte(brightness)
	e.shifts = max(shifts, 0)
}

func (e *APA102) NewSlot() *Slot {
	return &Slot{Data: make([]byte, 4*e.cfg.Width)}
}

// EncodeRow writes row y as pixel frames into slot.Data.
func (e *APA102) EncodeRow(y int, fill FillFunc, slot *Slot) {
	slot.Row = y
	fill(y, e.row)
	reverse := e.cfg.Serpentine && y%2 == 1
	b := e.brightness >> uint(e.shifts)
	for i := range e.row {
		src := i
		if reverse {
			src = len(e.row) - 1 - i
		}
		encodePixel(slot.Data[4*i:4*i+4], e.cfg.ColorOrder.Apply(e.row[src]), e.cfg.Mode, b)
	}
}

// StartFrame is the 32 zero bits that open a frame.
func StartFrame() []byte { return make([]byte, 4) }

// EndFrame returns the clock-out tail for n pixels.
func EndFrame(n int) []byte {
	m := (n + 15) / 16
	if m < 4 {
		m = 4
	}
	out := make([]byte, m)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}

// EncodeFrame is a convenience that renders a whole frame with start and
// end frames attached.
func (e *APA102) EncodeFrame(fill FillFunc) []byte {
	out := StartFrame()
	slot := e.NewSlot()
	for y := 0; y < e.cfg.Height; y++ {
		e.EncodeRow(y, fill, slot)
		out = append(out, slot.Data...)
	}
	return append(out, EndFrame(e.cfg.Width*e.cfg.Height)...)
}

func encodePixel(dst []byte, c [3]uint16, mode GBCMode, brightness int) {
	var gbc int
	var out [3]int
	switch mode {
	case GBCSimple:
		gbc = (brightness*31 + 254) / 255
		for i := range c {
			out[i] = int(c[i] >> 8)
		}
	case GBCBrightOnly:
		if brightness > 0 {
			gbc = min(brightness>>3+1, 31)
		}
		for i := range c {
			out[i] = int(c[i] >> 8)
		}
	case GBCNone:
		gbc = 31
		for i := range c {
			out[i] = int(c[i]>>8) * (brightness + 1) >> 8
		}
	default:
		var scaled [3]int
		m := 0
		for i := range c {
			scaled[i] = int(c[i]) * (brightness + 1) >> 8
			m = max(m, scaled[i])
		}
		gbc = min(m>>11+1, 31)
		for i := range scaled {
			out[i] = min(scaled[i]*31/(257*gbc), 255)
		}
	}
	dst[0] = 0xE0 | byte(gbc)
	dst[1], dst[2], dst[3] = byte(out[0]), byte(out[1]), byte(out[2])
}

// APA102Decoder recovers approximate 16-bit colors from encoded rows,
// folding the brightness field back into the channels.
type APA102Decoder struct {
	cfg APA102Config
}

func (e *APA102) Decoder() *APA102Decoder { return &APA102Decoder{cfg: e.cfg} }

// DecodeRow calls set for every pixel in slot.
func (d *APA102Decoder) DecodeRow(slot *Slot, set func(x, y int, c layer.RGB48)) {
	w := len(slot.Data) / 4
	reverse := d.cfg.Serpentine && slot.Row%2 == 1
	for i := 0; i < w; i++ {
		px := slot.Data[4*i : 4*i+4]
		gbc := uint32(px[0] & 0x1F)
		var v [3]uint16
		for k := 0; k < 3; k++ {
			v[k] = uint16(uint32(px[k+1]) * 257 * gbc / 31)
		}
		x := i
		if reverse {
			x = w - 1 - i
		}
		set(x, slot.Row, d.cfg.ColorOrder.Unapply(v))
	}
}
