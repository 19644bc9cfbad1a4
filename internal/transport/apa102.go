package transport

import (
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/apa102"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
)

// DefaultSPISpeed is the APA102 clock used when none is configured.
const DefaultSPISpeed = 8 * physic.MegaHertz

// APA102Options configures the serial-pixel transports.
type APA102Options struct {
	Width, Height int
	RefreshRate   int
	Speed         physic.Frequency
	Manual        bool
	Log           zerolog.Logger
}

// SPIAPA102 streams encoded APA102 rows straight to an SPI port, wrapping
// every frame in start and end frames.
type SPIAPA102 struct {
	*pump
	opts APA102Options
	conn spi.Conn
}

// OpenSPIAPA102 opens the named SPI port through spireg ("" picks the
// first one).
func OpenSPIAPA102(name string, o APA102Options) (*SPIAPA102, spi.PortCloser, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	t, err := NewSPIAPA102(p, o)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return t, p, nil
}

// NewSPIAPA102 connects to port in mode 0 with 8-bit words.
func NewSPIAPA102(port spi.Port, o APA102Options) (*SPIAPA102, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("apa102: invalid size %dx%d", o.Width, o.Height)
	}
	if o.Speed == 0 {
		o.Speed = DefaultSPISpeed
	}
	c, err := port.Connect(o.Speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect: %w", err)
	}
	return &SPIAPA102{
		pump: newPump(o.Height, o.RefreshRate, o.Log),
		opts: o,
		conn: c,
	}, nil
}

func (t *SPIAPA102) Start(src Source) error { return t.start(src, t.show, !t.opts.Manual) }
func (t *SPIAPA102) Stop() error            { return t.halt() }

func (t *SPIAPA102) SetRefreshRate(requested int) int { return t.setRate(requested) }

func (t *SPIAPA102) show(slot *encoder.Slot) error {
	if slot.Row == 0 {
		if err := t.conn.Tx(encoder.StartFrame(), nil); err != nil {
			return fmt.Errorf("start frame: %w", err)
		}
	}
	if err := t.conn.Tx(slot.Data, nil); err != nil {
		return fmt.Errorf("row %d: %w", slot.Row, err)
	}
	if slot.Row == t.opts.Height-1 {
		if err := t.conn.Tx(encoder.EndFrame(t.opts.Width*t.opts.Height), nil); err != nil {
			return fmt.Errorf("end frame: %w", err)
		}
	}
	return nil
}

// RecoverFromUnderrun sends one all-black frame.
func (t *SPIAPA102) RecoverFromUnderrun() {
	n := t.opts.Width * t.opts.Height
	buf := encoder.StartFrame()
	for i := 0; i < n; i++ {
		buf = append(buf, 0xE0, 0, 0, 0)
	}
	buf = append(buf, encoder.EndFrame(n)...)
	if err := t.conn.Tx(buf, nil); err != nil {
		t.log.Warn().Err(err).Msg("apa102 blank failed")
	}
}

// PeriphAPA102 feeds decoded 8-bit RGB to the periph apa102 driver in
// pass-through mode, one Write per frame.
type PeriphAPA102 struct {
	*pump
	opts APA102Options
	dev  *apa102.Dev
	dec  RowDecoder
	rgb  []byte
}

// NewPeriphAPA102 wraps port with the apa102 device driver. dec recovers
// pixels from encoded rows.
func NewPeriphAPA102(port spi.Port, dec RowDecoder, o APA102Options) (*PeriphAPA102, error) {
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("apa102: invalid size %dx%d", o.Width, o.Height)
	}
	opts := apa102.PassThruOpts
	opts.NumPixels = o.Width * o.Height
	dev, err := apa102.New(port, &opts)
	if err != nil {
		return nil, fmt.Errorf("apa102: %w", err)
	}
	return &PeriphAPA102{
		pump: newPump(o.Height, o.RefreshRate, o.Log),
		opts: o,
		dev:  dev,
		dec:  dec,
		rgb:  make([]byte, 3*opts.NumPixels),
	}, nil
}

func (t *PeriphAPA102) Start(src Source) error { return t.start(src, t.show, !t.opts.Manual) }
func (t *PeriphAPA102) Stop() error            { return t.halt() }

func (t *PeriphAPA102) SetRefreshRate(requested int) int { return t.setRate(requested) }

func (t *PeriphAPA102) show(slot *encoder.Slot) error {
	w := t.opts.Width
	t.dec.DecodeRow(slot, func(x, y int, c layer.RGB48) {
		if x < 0 || x >= w || y < 0 || y >= t.opts.Height {
			return
		}
		i := 3 * (y*w + x)
		t.rgb[i], t.rgb[i+1], t.rgb[i+2] = byte(c.R>>8), byte(c.G>>8), byte(c.B>>8)
	})
	if slot.Row != t.opts.Height-1 {
		return nil
	}
	_, err := t.dev.Write(t.rgb)
	return err
}

// RecoverFromUnderrun turns every pixel off.
func (t *PeriphAPA102) RecoverFromUnderrun() {
	if err := t.dev.Halt(); err != nil {
		t.log.Warn().Err(err).Msg("apa102 halt failed")
	}
}
