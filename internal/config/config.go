package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
	"github.com/coreman2200/arcaluminis-matrix/internal/panelmap"
	"github.com/coreman2200/arcaluminis-matrix/internal/scheduler"
	"github.com/coreman2200/arcaluminis-matrix/internal/transport"
)

type Timer struct {
	TimerHz      int `yaml:"timer_hz"`
	PixelClockHz int `yaml:"pixel_clock_hz"`
	LatchClocks  int `yaml:"latch_clocks"`
}

type SPI struct {
	Dev     string `yaml:"dev"`      // spireg name, "" = first port
	SpeedHz int    `yaml:"speed_hz"` // e.g. 8000000
}

// Pins is the HUB75 wiring by BCM/line number.
type Pins struct {
	R1  int `yaml:"r1"`
	G1  int `yaml:"g1"`
	B1  int `yaml:"b1"`
	R2  int `yaml:"r2"`
	G2  int `yaml:"g2"`
	B2  int `yaml:"b2"`
	LAT int `yaml:"lat"`
	OE  int `yaml:"oe"`
	A   int `yaml:"a"`
	B   int `yaml:"b"`
	C   int `yaml:"c"`
	D   int `yaml:"d"`
	E   int `yaml:"e"`
	CLK int `yaml:"clk"`
}

type GPIO struct {
	Chip string `yaml:"chip"` // gpiocdev chip, e.g. gpiochip0
	Pins *Pins  `yaml:"pins,omitempty"`
}

type Config struct {
	Display   string `yaml:"display"`   // "hub75" | "apa102"
	Transport string `yaml:"transport"` // "sim" | "gpio" | "gpiocdev" | "spi" | "periph"

	// HUB75
	Panel          string `yaml:"panel"`
	Panels         int    `yaml:"panels"`
	Depth          int    `yaml:"depth"`
	MaxBufferBytes int    `yaml:"max_buffer_bytes"`
	Timer          Timer  `yaml:"timer"`
	BudgetRows     int    `yaml:"budget_rows"` // 0 = scan rows

	// APA102
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	GBCMode    string `yaml:"gbc_mode"`
	Serpentine bool   `yaml:"serpentine"`

	RefreshRate    int    `yaml:"refresh_hz"`
	MinRefreshRate int    `yaml:"min_refresh_hz"`
	RateStep       int    `yaml:"rate_step_hz"`
	Brightness     int    `yaml:"brightness"`
	Rotation       int    `yaml:"rotation"`
	ColorOrder     string `yaml:"color_order"`
	RingSlots      int    `yaml:"ring_slots"`
	Pattern        string `yaml:"pattern"`
	LogLevel       string `yaml:"log_level"`

	SPI  SPI  `yaml:"spi,omitempty"`
	GPIO GPIO `yaml:"gpio,omitempty"`
}

// Default is a 32x32 1/16-scan panel on the simulator.
func Default() *Config {
	return &Config{
		Display:        "hub75",
		Transport:      "sim",
		Panel:          "32x32-mod16",
		Panels:         1,
		Depth:          8,
		MaxBufferBytes: 256 << 10,
		RefreshRate:    120,
		MinRefreshRate: 30,
		RateStep:       10,
		Brightness:     255,
		ColorOrder:     "RGB",
		RingSlots:      4,
		LogLevel:       "info",
		GPIO:           GPIO{Chip: "gpiochip0"},
	}
}

// Load reads path over Default.
func Load(path string) (*Config, error) {
	c := Default()
	if err := LoadInto(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadInto overlays the keys present in path onto c.
func LoadInto(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks the fields that do not need the encoder to judge. Every
// failure is an encoder.ConfigurationError.
func (c *Config) Validate() error {
	switch c.Display {
	case "hub75":
		p, ok := panelmap.Lookup(c.Panel)
		if !ok {
			return encoder.Configf("unknown panel %q (have %v)", c.Panel, panelmap.Names())
		}
		if err := p.Validate(); err != nil {
			return &encoder.ConfigurationError{Reason: "panel " + c.Panel, Err: err}
		}
		if c.Depth < 1 || c.Depth > 16 {
			return encoder.Configf("depth %d out of range 1..16", c.Depth)
		}
		if c.Panels < 1 {
			return encoder.Configf("panels %d must be at least 1", c.Panels)
		}
	case "apa102":
		if c.Width <= 0 || c.Height <= 0 {
			return encoder.Configf("apa102 size %dx%d", c.Width, c.Height)
		}
		if _, err := encoder.ParseGBCMode(c.GBCMode); err != nil {
			return err
		}
	default:
		return encoder.Configf("unknown display %q", c.Display)
	}
	switch c.Transport {
	case "sim", "gpio", "gpiocdev", "spi", "periph":
	default:
		return encoder.Configf("unknown transport %q", c.Transport)
	}
	if c.Display == "hub75" && (c.Transport == "spi" || c.Transport == "periph") {
		return encoder.Configf("transport %q cannot drive hub75 panels", c.Transport)
	}
	if c.Display == "apa102" && (c.Transport == "gpio" || c.Transport == "gpiocdev") {
		return encoder.Configf("transport %q cannot drive apa102 pixels", c.Transport)
	}
	if c.RefreshRate <= 0 {
		return encoder.Configf("refresh_hz %d must be positive", c.RefreshRate)
	}
	if c.MinRefreshRate > c.RefreshRate {
		return encoder.Configf("min_refresh_hz %d above refresh_hz %d", c.MinRefreshRate, c.RefreshRate)
	}
	if c.Brightness < 0 || c.Brightness > 255 {
		return encoder.Configf("brightness %d out of range 0..255", c.Brightness)
	}
	if c.RingSlots < 2 {
		return encoder.Configf("ring_slots %d must be at least 2", c.RingSlots)
	}
	if _, err := layer.ParseRotation(c.Rotation); err != nil {
		return &encoder.ConfigurationError{Reason: "rotation", Err: err}
	}
	if _, err := encoder.ParseColorOrder(c.ColorOrder); err != nil {
		return err
	}
	switch layer.PatternKind(c.Pattern) {
	case layer.PatternNone, layer.IndexSweep, layer.RGBTest, layer.RowPlane:
	default:
		return encoder.Configf("unknown pattern %q", c.Pattern)
	}
	return nil
}

// HUB75 builds the encoder configuration. Call Validate first.
func (c *Config) HUB75() encoder.HUB75Config {
	p, _ := panelmap.Lookup(c.Panel)
	order, _ := encoder.ParseColorOrder(c.ColorOrder)
	t := encoder.Timer{TimerHz: c.Timer.TimerHz, PixelClockHz: c.Timer.PixelClockHz, LatchClocks: c.Timer.LatchClocks}
	if t.TimerHz == 0 || t.PixelClockHz == 0 {
		t = encoder.DefaultTimer
	}
	return encoder.HUB75Config{
		Panel:          p,
		Panels:         c.Panels,
		Depth:          c.Depth,
		RefreshRate:    c.RefreshRate,
		Capacity:       c.RingSlots,
		MaxBufferBytes: c.MaxBufferBytes,
		Timer:          t,
		ColorOrder:     order,
		BudgetRows:     c.BudgetRows,
	}
}

// APA102 builds the encoder configuration. Call Validate first.
func (c *Config) APA102() encoder.APA102Config {
	order, _ := encoder.ParseColorOrder(c.ColorOrder)
	mode, _ := encoder.ParseGBCMode(c.GBCMode)
	return encoder.APA102Config{
		Width:       c.Width,
		Height:      c.Height,
		RefreshRate: c.RefreshRate,
		ColorOrder:  order,
		Mode:        mode,
		Serpentine:  c.Serpentine,
	}
}

func (c *Config) Scheduler() scheduler.Options {
	r, _ := layer.ParseRotation(c.Rotation)
	return scheduler.Options{
		Capacity:       c.RingSlots,
		MinRefreshRate: c.MinRefreshRate,
		RateStep:       c.RateStep,
		Brightness:     c.Brightness,
		Rotation:       r,
	}
}

// PinMap returns the configured wiring or the default one.
func (c *Config) PinMap() transport.PinMap {
	p := c.GPIO.Pins
	if p == nil {
		return transport.DefaultPinMap
	}
	return transport.PinMap{
		R1: p.R1, G1: p.G1, B1: p.B1,
		R2: p.R2, G2: p.G2, B2: p.B2,
		LAT: p.LAT, OE: p.OE,
		A: p.A, B: p.B, C: p.C, D: p.D, E: p.E,
		CLK: p.CLK,
	}
}
