package layer

// Chain paints layers back to front. The last opaque writer of a pixel wins.
type Chain struct {
	layers []Layer
}

// Add appends l on top of the existing layers.
func (c *Chain) Add(l Layer) { c.layers = append(c.layers, l) }

// Len is the number of layers.
func (c *Chain) Len() int { return len(c.layers) }

func (c *Chain) SetRotation(r Rotation) {
	for _, l := range c.layers {
		l.SetRotation(r)
	}
}

func (c *Chain) SetRefreshRate(hz int) {
	for _, l := range c.layers {
		l.SetRefreshRate(hz)
	}
}

// FrameRefresh runs every layer's frame callback.
func (c *Chain) FrameRefresh() {
	for _, l := range c.layers {
		l.FrameRefreshCallback()
	}
}

// FillRow clears buf and paints hardware row hwRow into it.
func (c *Chain) FillRow(hwRow int, buf []RGB48) {
	for i := range buf {
		buf[i] = RGB48{}
	}
	for _, l := range c.layers {
		l.FillRefreshRow(hwRow, buf)
	}
}

// RequestedBrightnessShifts is the largest request of any layer.
func (c *Chain) RequestedBrightnessShifts() int {
	k := 0
	for _, l := range c.layers {
		if s := l.RequestedBrightnessShifts(); s > k {
			k = s
		}
	}
	return k
}

// ApplyBrightnessShifts tells every BrightnessShifter the applied shift.
func (c *Chain) ApplyBrightnessShifts(k int) {
	for _, l := range c.layers {
		if s, ok := l.(BrightnessShifter); ok {
			s.SetBrightnessShifts(k)
		}
	}
}
