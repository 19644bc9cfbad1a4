package transport

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
)

// PeriphPinBus drives HUB75 signals through periph gpio pins. Only pins
// whose level changes are written.
type PeriphPinBus struct {
	signals [13]gpio.PinOut
	clk     gpio.PinOut
	last    uint16
	primed  bool
}

// OpenPeriphPinBus looks pins up by BCM number ("GPIO<n>") in gpioreg.
// host.Init must have run.
func OpenPeriphPinBus(m PinMap) (*PeriphPinBus, error) {
	var signals [13]gpio.PinOut
	for i, n := range m.Signals() {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			return nil, fmt.Errorf("hub75: no gpio %d", n)
		}
		signals[i] = p
	}
	clk := gpioreg.ByName(fmt.Sprintf("GPIO%d", m.CLK))
	if clk == nil {
		return nil, fmt.Errorf("hub75: no gpio %d for CLK", m.CLK)
	}
	return NewPeriphPinBus(signals, clk), nil
}

// NewPeriphPinBus uses the given pins, signals in word-bit order.
func NewPeriphPinBus(signals [13]gpio.PinOut, clk gpio.PinOut) *PeriphPinBus {
	return &PeriphPinBus{signals: signals, clk: clk}
}

func (b *PeriphPinBus) Write(word uint16) error {
	for i, p := range b.signals {
		bit := uint16(1) << uint(i)
		if b.primed && (b.last^word)&bit == 0 {
			continue
		}
		if err := p.Out(gpio.Level(word&bit != 0)); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	b.last, b.primed = word, true
	return nil
}

func (b *PeriphPinBus) Clock() error {
	if err := b.clk.Out(gpio.High); err != nil {
		return err
	}
	return b.clk.Out(gpio.Low)
}

// Close drives every line low except OE, which stays high to blank.
func (b *PeriphPinBus) Close() error {
	return b.Write(encoder.BitOE)
}
