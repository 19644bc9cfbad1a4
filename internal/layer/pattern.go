package layer

import "sync"

// PatternKind selects a calibration pattern.
type PatternKind string

const (
	PatternNone PatternKind = ""
	IndexSweep  PatternKind = "index_sweep"
	RGBTest     PatternKind = "rgb_channels"
	RowPlane    PatternKind = "row_plane"
)

// Pattern draws calibration patterns used to check panel wiring. It writes
// every pixel while running and nothing once the pattern is complete.
type Pattern struct {
	surface

	mu             sync.Mutex
	kind           PatternKind
	step           int
	frames         int
	stepsPerSecond int
	done           bool
}

// NewPattern builds a pattern for a w x h hardware display. stepsPerSecond
// of 0 advances one step every frame.
func NewPattern(w, h int, kind PatternKind, stepsPerSecond int) *Pattern {
	return &Pattern{
		surface:        surface{hwWidth: w, hwHeight: h},
		kind:           kind,
		stepsPerSecond: stepsPerSecond,
		done:           kind == PatternNone,
	}
}

func (p *Pattern) Kind() PatternKind { return p.kind }

// Step is the current step index.
func (p *Pattern) Step() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step
}

// Done reports whether the pattern has finished.
func (p *Pattern) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Pattern) SetRotation(r Rotation) {
	p.mu.Lock()
	p.rotation = r
	p.mu.Unlock()
}

func (p *Pattern) SetRefreshRate(hz int) {
	p.mu.Lock()
	p.refreshRate = hz
	p.mu.Unlock()
}

func (p *Pattern) RequestedBrightnessShifts() int { return 0 }

func (p *Pattern) FrameRefreshCallback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.frames++
	if p.frames < p.framesPer(p.stepsPerSecond) {
		return
	}
	p.frames = 0
	p.step++
	w, h := p.size()
	switch p.kind {
	case IndexSweep:
		p.done = p.step >= w*h
	case RowPlane:
		p.done = p.step >= h
	}
}

func (p *Pattern) FillRefreshRow(hwRow int, row []RGB48) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || hwRow < 0 || hwRow >= p.hwHeight {
		return
	}
	w, _ := p.size()
	const full = 0xFFFF
	n := min(len(row), p.hwWidth)
	for hx := 0; hx < n; hx++ {
		x, y := p.rotation.Unmap(hx, hwRow, p.hwWidth, p.hwHeight)
		var c RGB48
		switch p.kind {
		case IndexSweep:
			if y*w+x == p.step {
				c = RGB48{full, full, full}
			}
		case RGBTest:
			switch p.step % 3 {
			case 0:
				c.R = full
			case 1:
				c.G = full
			case 2:
				c.B = full
			}
		case RowPlane:
			if y == p.step {
				c = RGB48{0, full, full}
			}
		}
		row[hx] = c
	}
}
