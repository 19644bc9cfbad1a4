package layer

import "sync"

// Background is a double-buffered RGB24 framebuffer. Drawing goes to the
// back buffer; Swap publishes it at the next frame boundary. It writes every
// pixel of every row.
type Background struct {
	surface

	mu        sync.Mutex
	front     []RGB24
	back      []RGB24
	pending   bool
	copyBack  bool
	requested int
}

// NewBackground allocates a background for a w x h hardware display.
func NewBackground(w, h int) *Background {
	return &Background{
		surface: surface{hwWidth: w, hwHeight: h},
		front:   make([]RGB24, w*h),
		back:    make([]RGB24, w*h),
	}
}

// Size is the logical drawing size under the current rotation.
func (b *Background) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size()
}

// SetPixel draws into the back buffer. Out-of-range writes are dropped.
func (b *Background) SetPixel(x, y int, c RGB24) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, h := b.size()
	if x < 0 || y < 0 || x >= w || y >= h {
		return
	}
	b.back[y*w+x] = c
}

// Fill paints the whole back buffer.
func (b *Background) Fill(c RGB24) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.back {
		b.back[i] = c
	}
}

// Swap requests a buffer exchange at the next frame. With copyBack the new
// back buffer starts as a copy of what is being shown.
func (b *Background) Swap(copyBack bool) {
	b.mu.Lock()
	b.pending = true
	b.copyBack = copyBack
	b.mu.Unlock()
}

// SwapPending reports whether a requested swap has not happened yet.
func (b *Background) SwapPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// SetRequestedBrightnessShifts sets the headroom this layer asks for.
func (b *Background) SetRequestedBrightnessShifts(k int) {
	b.mu.Lock()
	b.requested = k
	b.mu.Unlock()
}

func (b *Background) RequestedBrightnessShifts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requested
}

func (b *Background) SetBrightnessShifts(k int) {
	b.mu.Lock()
	b.shifts = k
	b.mu.Unlock()
}

func (b *Background) SetRotation(r Rotation) {
	b.mu.Lock()
	b.rotation = r
	b.mu.Unlock()
}

func (b *Background) SetRefreshRate(hz int) {
	b.mu.Lock()
	b.refreshRate = hz
	b.mu.Unlock()
}

func (b *Background) FrameRefreshCallback() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending {
		return
	}
	b.front, b.back = b.back, b.front
	if b.copyBack {
		copy(b.back, b.front)
	}
	b.pending = false
}

func (b *Background) FillRefreshRow(hwRow int, row []RGB48) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hwRow < 0 || hwRow >= b.hwHeight {
		return
	}
	w, _ := b.size()
	n := min(len(row), b.hwWidth)
	for hx := 0; hx < n; hx++ {
		x, y := b.rotation.Unmap(hx, hwRow, b.hwWidth, b.hwHeight)
		row[hx] = b.front[y*w+x].Expand().shift(b.shifts)
	}
}
