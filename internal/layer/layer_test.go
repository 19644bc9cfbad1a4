package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationRoundTrip(t *testing.T) {
	const w, h = 8, 4
	for _, r := range []Rotation{Rotation0, Rotation90, Rotation180, Rotation270} {
		lw, lh := w, h
		if r.Swaps() {
			lw, lh = h, w
		}
		seen := map[[2]int]bool{}
		for y := 0; y < lh; y++ {
			for x := 0; x < lw; x++ {
				hx, hy := r.Map(x, y, w, h)
				require.True(t, hx >= 0 && hx < w && hy >= 0 && hy < h, "rotation %d (%d,%d)", r, x, y)
				assert.False(t, seen[[2]int{hx, hy}], "rotation %d not a bijection", r)
				seen[[2]int{hx, hy}] = true
				bx, by := r.Unmap(hx, hy, w, h)
				assert.Equal(t, [2]int{x, y}, [2]int{bx, by}, "rotation %d", r)
			}
		}
	}
}

func TestParseRotation(t *testing.T) {
	r, err := ParseRotation(270)
	require.NoError(t, err)
	assert.Equal(t, Rotation270, r)
	_, err = ParseRotation(45)
	assert.Error(t, err)
}

func TestLastOpaqueWriterWins(t *testing.T) {
	bg := NewBackground(4, 2)
	bg.Fill(RGB24{R: 255})
	bg.Swap(false)

	text := NewMono(4, 2, RGB24{B: 255})
	text.Set(1, 0, true)

	var c Chain
	c.Add(bg)
	c.Add(text)
	c.FrameRefresh()

	row := make([]RGB48, 4)
	c.FillRow(0, row)
	red := RGB48{R: 0xFFFF}
	blue := RGB48{B: 0xFFFF}
	assert.Equal(t, []RGB48{red, blue, red, red}, row)

	c.FillRow(1, row)
	assert.Equal(t, []RGB48{red, red, red, red}, row)
}

func TestEmptyChainClearsRow(t *testing.T) {
	var c Chain
	row := []RGB48{{1, 2, 3}}
	c.FillRow(0, row)
	assert.Equal(t, RGB48{}, row[0])
}

func TestBackgroundSwapOnlyAtFrame(t *testing.T) {
	bg := NewBackground(2, 1)
	bg.SetPixel(0, 0, RGB24{G: 0x80})
	row := make([]RGB48, 2)

	bg.FillRefreshRow(0, row)
	assert.Equal(t, RGB48{}, row[0], "drawing is invisible until swapped")

	bg.Swap(true)
	assert.True(t, bg.SwapPending())
	bg.FillRefreshRow(0, row)
	assert.Equal(t, RGB48{}, row[0])

	bg.FrameRefreshCallback()
	assert.False(t, bg.SwapPending())
	bg.FillRefreshRow(0, row)
	assert.Equal(t, RGB48{G: 0x8080}, row[0])

	// No pending swap: a second callback changes nothing.
	bg.FrameRefreshCallback()
	bg.FillRefreshRow(0, row)
	assert.Equal(t, RGB48{G: 0x8080}, row[0])
}

func TestBackgroundRotation(t *testing.T) {
	bg := NewBackground(4, 2)
	bg.SetRotation(Rotation90)
	w, h := bg.Size()
	assert.Equal(t, 2, w)
	assert.Equal(t, 4, h)

	bg.SetPixel(0, 0, RGB24{R: 255})
	bg.Swap(false)
	bg.FrameRefreshCallback()

	hx, hy := Rotation90.Map(0, 0, 4, 2)
	row := make([]RGB48, 4)
	bg.FillRefreshRow(hy, row)
	assert.Equal(t, uint16(0xFFFF), row[hx].R)
}

func TestBrightnessShifts(t *testing.T) {
	bg := NewBackground(1, 1)
	bg.SetRequestedBrightnessShifts(2)
	text := NewMono(1, 1, RGB24{R: 0x10})
	text.Set(0, 0, true)

	var c Chain
	c.Add(bg)
	c.Add(text)
	k := c.RequestedBrightnessShifts()
	assert.Equal(t, 2, k)
	c.ApplyBrightnessShifts(k)

	row := make([]RGB48, 1)
	c.FillRow(0, row)
	assert.Equal(t, uint16(0x1010<<2), row[0].R)

	text.SetColor(RGB24{R: 0xFF})
	c.FillRow(0, row)
	assert.Equal(t, uint16(0xFFFF), row[0].R, "saturates")
}

func TestMonoScroll(t *testing.T) {
	m := NewMono(4, 1, RGB24{G: 255})
	m.Set(1, 0, true)
	m.SetRefreshRate(120)
	m.SetScrollSpeed(60)

	m.FrameRefreshCallback()
	assert.Equal(t, 0, m.Offset())
	m.FrameRefreshCallback()
	assert.Equal(t, 1, m.Offset())

	row := make([]RGB48, 4)
	m.FillRefreshRow(0, row)
	assert.Equal(t, uint16(0xFFFF), row[0].G)
	assert.Equal(t, uint16(0), row[1].G)
}

func TestPatternIndexSweep(t *testing.T) {
	p := NewPattern(2, 2, IndexSweep, 0)
	row := make([]RGB48, 2)
	lit := 0
	for !p.Done() {
		for y := 0; y < 2; y++ {
			p.FillRefreshRow(y, row)
			for _, c := range row {
				if c.R == 0xFFFF {
					lit++
				}
			}
		}
		p.FrameRefreshCallback()
	}
	assert.Equal(t, 4, lit)
	assert.Equal(t, 4, p.Step())

	row[0] = RGB48{1, 1, 1}
	p.FillRefreshRow(0, row)
	assert.Equal(t, RGB48{1, 1, 1}, row[0], "finished pattern is transparent")
}

func TestPatternRGBCycle(t *testing.T) {
	p := NewPattern(1, 1, RGBTest, 0)
	row := make([]RGB48, 1)
	want := []RGB48{{R: 0xFFFF}, {G: 0xFFFF}, {B: 0xFFFF}, {R: 0xFFFF}}
	for _, w := range want {
		p.FillRefreshRow(0, row)
		assert.Equal(t, w, row[0])
		p.FrameRefreshCallback()
	}
	assert.False(t, p.Done())
}
