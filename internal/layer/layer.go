// Package layer composites drawable layers into hardware rows.
package layer

// RGB48 is one pixel at 16 bits per channel.
type RGB48 struct{ R, G, B uint16 }

// RGB24 is one pixel at 8 bits per channel.
type RGB24 struct{ R, G, B uint8 }

// Expand widens an 8-bit pixel by byte replication.
func (c RGB24) Expand() RGB48 {
	return RGB48{
		R: uint16(c.R)<<8 | uint16(c.R),
		G: uint16(c.G)<<8 | uint16(c.G),
		B: uint16(c.B)<<8 | uint16(c.B),
	}
}

// Layer is one drawable in a Chain. All methods except drawing calls made
// by the layer's owner run on the refresh goroutine.
type Layer interface {
	// FillRefreshRow paints the layer's contribution to hardware row hwRow.
	FillRefreshRow(hwRow int, row []RGB48)
	// FrameRefreshCallback runs once per frame, before row 0.
	FrameRefreshCallback()
	SetRotation(r Rotation)
	SetRefreshRate(hz int)
	// RequestedBrightnessShifts is how many bits of headroom the layer wants.
	RequestedBrightnessShifts() int
}

// BrightnessShifter is implemented by layers that scale their output up by
// 2^k when the chain dims the panel by k bits.
type BrightnessShifter interface {
	SetBrightnessShifts(k int)
}

// shiftUp scales v by 2^k, saturating.
func shiftUp(v uint16, k int) uint16 {
	if k <= 0 {
		return v
	}
	s := uint32(v) << uint(k)
	if s > 0xFFFF {
		return 0xFFFF
	}
	return uint16(s)
}

func (c RGB48) shift(k int) RGB48 {
	return RGB48{shiftUp(c.R, k), shiftUp(c.G, k), shiftUp(c.B, k)}
}

// surface holds the geometry every concrete layer shares.
type surface struct {
	hwWidth, hwHeight int
	rotation          Rotation
	refreshRate       int
	shifts            int
}

// size returns the logical width and height under the current rotation.
func (s *surface) size() (int, int) {
	if s.rotation.Swaps() {
		return s.hwHeight, s.hwWidth
	}
	return s.hwWidth, s.hwHeight
}

// framesPer converts a per-second rate into frames per step.
func (s *surface) framesPer(perSecond int) int {
	if perSecond <= 0 || s.refreshRate <= perSecond {
		return 1
	}
	return s.refreshRate / perSecond
}
