package layer

import "fmt"

// Rotation is a clockwise screen rotation.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ParseRotation accepts 0, 90, 180 or 270 degrees.
func ParseRotation(deg int) (Rotation, error) {
	switch r := Rotation(deg); r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return r, nil
	}
	return 0, fmt.Errorf("layer: unsupported rotation %d", deg)
}

// Swaps reports whether logical width and height are exchanged.
func (r Rotation) Swaps() bool { return r == Rotation90 || r == Rotation270 }

// Map converts logical (x, y) to hardware coordinates on a w x h display.
func (r Rotation) Map(x, y, w, h int) (int, int) {
	switch r {
	case Rotation90:
		return w - 1 - y, x
	case Rotation180:
		return w - 1 - x, h - 1 - y
	case Rotation270:
		return y, h - 1 - x
	}
	return x, y
}

// Unmap is the inverse of Map.
func (r Rotation) Unmap(hx, hy, w, h int) (int, int) {
	switch r {
	case Rotation90:
		return hy, w - 1 - hx
	case Rotation180:
		return w - 1 - hx, h - 1 - hy
	case Rotation270:
		return h - 1 - hy, hx
	}
	return hx, hy
}
