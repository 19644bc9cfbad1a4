package transport

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevLines is the subset of *gpiocdev.Lines the bus needs.
type CdevLines interface {
	SetValues(values []int) error
	Close() error
}

// CdevPinBus drives HUB75 signals through one gpiocdev line request, so
// all data and address lines change in a single ioctl.
type CdevPinBus struct {
	lines  CdevLines
	values []int // 13 signals then CLK
}

// OpenCdevPinBus requests the lines of m as outputs on chip
// (e.g. "gpiochip0"). OE starts high.
func OpenCdevPinBus(chip string, m PinMap) (*CdevPinBus, error) {
	sig := m.Signals()
	offsets := append(sig[:], m.CLK)
	init := make([]int, len(offsets))
	init[7] = 1
	l, err := gpiocdev.RequestLines(chip, offsets, gpiocdev.AsOutput(init...))
	if err != nil {
		return nil, fmt.Errorf("hub75: request lines on %s: %w", chip, err)
	}
	return NewCdevPinBus(l), nil
}

func NewCdevPinBus(lines CdevLines) *CdevPinBus {
	v := make([]int, 14)
	v[7] = 1
	return &CdevPinBus{lines: lines, values: v}
}

func (b *CdevPinBus) Write(word uint16) error {
	for i := 0; i < 13; i++ {
		b.values[i] = int(word>>uint(i)) & 1
	}
	b.values[13] = 0
	return b.lines.SetValues(b.values)
}

func (b *CdevPinBus) Clock() error {
	b.values[13] = 1
	if err := b.lines.SetValues(b.values); err != nil {
		return err
	}
	b.values[13] = 0
	return b.lines.SetValues(b.values)
}

func (b *CdevPinBus) Close() error {
	for i := range b.values {
		b.values[i] = 0
	}
	b.values[7] = 1
	if err := b.lines.SetValues(b.values); err != nil {
		_ = b.lines.Close()
		return err
	}
	return b.lines.Close()
}
