package encoder

import (
	"fmt"
	"strings"

	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
)

// ColorOrder is the channel order the hardware expects.
type ColorOrder [3]byte

var (
	RGB = ColorOrder{'R', 'G', 'B'}
	RBG = ColorOrder{'R', 'B', 'G'}
	GRB = ColorOrder{'G', 'R', 'B'}
	GBR = ColorOrder{'G', 'B', 'R'}
	BRG = ColorOrder{'B', 'R', 'G'}
	BGR = ColorOrder{'B', 'G', 'R'}
)

// ParseColorOrder accepts any permutation of "RGB", case-insensitive.
// The empty string means RGB.
func ParseColorOrder(s string) (ColorOrder, error) {
	if s == "" {
		return RGB, nil
	}
	s = strings.ToUpper(s)
	for _, o := range []ColorOrder{RGB, RBG, GRB, GBR, BRG, BGR} {
		if o.String() == s {
			return o, nil
		}
	}
	return ColorOrder{}, Configf("unknown color order %q", s)
}

func (o ColorOrder) String() string { return string(o[:]) }

func pick(c layer.RGB48, ch byte) uint16 {
	switch ch {
	case 'R':
		return c.R
	case 'G':
		return c.G
	default:
		return c.B
	}
}

// Apply returns the channels of c in wire order.
func (o ColorOrder) Apply(c layer.RGB48) [3]uint16 {
	return [3]uint16{pick(c, o[0]), pick(c, o[1]), pick(c, o[2])}
}

// Unapply is the inverse of Apply.
func (o ColorOrder) Unapply(v [3]uint16) layer.RGB48 {
	var c layer.RGB48
	for i, ch := range o {
		switch ch {
		case 'R':
			c.R = v[i]
		case 'G':
			c.G = v[i]
		default:
			c.B = v[i]
		}
	}
	return c
}

// Valid reports whether o is a permutation of R, G and B.
func (o ColorOrder) Valid() bool {
	seen := map[byte]bool{}
	for _, ch := range o {
		if ch != 'R' && ch != 'G' && ch != 'B' {
			return false
		}
		seen[ch] = true
	}
	return len(seen) == 3
}

func (o ColorOrder) check() error {
	if !o.Valid() {
		return fmt.Errorf("encoder: %w", Configf("invalid color order %q", o.String()))
	}
	return nil
}
