package layer

import "sync"

// Mono is a one-bit mask drawn in a single color, for text and sprites.
// It only writes pixels whose mask bit is set. The mask can scroll
// horizontally, advanced once per frame.
type Mono struct {
	surface

	mu     sync.Mutex
	mask   []bool
	color  RGB24
	speed  int // pixels per second, 0 = static
	offset int
	frames int
}

// NewMono allocates a mono layer for a w x h hardware display.
func NewMono(w, h int, c RGB24) *Mono {
	return &Mono{
		surface: surface{hwWidth: w, hwHeight: h},
		mask:    make([]bool, w*h),
		color:   c,
	}
}

func (m *Mono) SetColor(c RGB24) {
	m.mu.Lock()
	m.color = c
	m.mu.Unlock()
}

// Set turns logical pixel (x, y) on or off.
func (m *Mono) Set(x, y int, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, h := m.size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return
	}
	m.mask[y*w+x] = on
}

// Clear turns every pixel off and resets the scroll position.
func (m *Mono) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mask {
		m.mask[i] = false
	}
	m.offset = 0
}

// SetScrollSpeed sets the horizontal scroll in pixels per second.
func (m *Mono) SetScrollSpeed(pxPerSecond int) {
	m.mu.Lock()
	m.speed = pxPerSecond
	m.frames = 0
	m.mu.Unlock()
}

// Offset is the current scroll position in logical columns.
func (m *Mono) Offset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

func (m *Mono) SetRotation(r Rotation) {
	m.mu.Lock()
	m.rotation = r
	m.offset = 0
	m.mu.Unlock()
}

func (m *Mono) SetRefreshRate(hz int) {
	m.mu.Lock()
	m.refreshRate = hz
	m.mu.Unlock()
}

func (m *Mono) RequestedBrightnessShifts() int { return 0 }

func (m *Mono) SetBrightnessShifts(k int) {
	m.mu.Lock()
	m.shifts = k
	m.mu.Unlock()
}

func (m *Mono) FrameRefreshCallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speed == 0 {
		return
	}
	m.frames++
	if m.frames < m.framesPer(m.speed) {
		return
	}
	m.frames = 0
	w, _ := m.size()
	m.offset = (m.offset + 1) % w
}

func (m *Mono) FillRefreshRow(hwRow int, row []RGB48) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hwRow < 0 || hwRow >= m.hwHeight {
		return
	}
	w, _ := m.size()
	c := m.color.Expand().shift(m.shifts)
	n := min(len(row), m.hwWidth)
	for hx := 0; hx < n; hx++ {
		x, y := m.rotation.Unmap(hx, hwRow, m.hwWidth, m.hwHeight)
		x = (x + m.offset) % w
		if m.mask[y*w+x] {
			row[hx] = c
		}
	}
}
