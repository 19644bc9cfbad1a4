package panelmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPanelsValidate(t *testing.T) {
	for _, name := range Names() {
		p, ok := Lookup(name)
		require.True(t, ok, name)
		assert.NoError(t, p.Validate(), name)
	}
}

func TestSentinelOnlyMapsNothing(t *testing.T) {
	c := NewCursor(Table{Sentinel}, 2, 32)
	calls := 0
	n := c.Walk(func(int, int, int) { calls++ })
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, calls)
}

func TestRunsSumToWidthPerRowOffset(t *testing.T) {
	for _, name := range Names() {
		p, _ := Lookup(name)
		perRow := map[int]int{}
		for _, e := range p.Map.Runs() {
			perRow[e.RowOffset] += e.Len()
		}
		for off, n := range perRow {
			assert.Equal(t, p.Width, n, "%s row offset %d", name, off)
		}
	}
}

func TestReversedRunWalksDown(t *testing.T) {
	tab := Table{{RowOffset: 0, BufferOffset: 7, NumPixels: -8}, Sentinel}
	c := NewCursor(tab, 1, 8)
	require.True(t, c.Next())
	var src, dst []int
	c.Map(func(s, d int) {
		src = append(src, s)
		dst = append(dst, d)
	})
	assert.Equal(t, []int{7, 6, 5, 4, 3, 2, 1, 0}, src)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, dst)
	assert.False(t, c.Next())
}

func TestCursorChainsPanels(t *testing.T) {
	p, _ := Lookup("32x16-mod4")
	c := NewCursor(p.Map, 2, p.Width)
	seen := map[int]bool{}
	total := c.Walk(func(row, src, dst int) {
		assert.False(t, seen[dst], "dst %d written twice", dst)
		seen[dst] = true
		assert.Less(t, src, 2*p.Width)
	})
	assert.Equal(t, 2*p.PixelsPerLatch(), total)

	// The first run of the second panel starts after the first panel's pixels.
	c.Reset()
	require.True(t, c.Next())
	assert.Equal(t, 4, c.RowOffset())
	var first []int
	c.Map(func(src, dst int) {
		if dst == p.PixelsPerLatch() {
			first = append(first, src)
		}
	})
	assert.Equal(t, []int{p.Width}, first)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]Panel{
		"no sentinel":    {Name: "x", Width: 8, Height: 4, ScanRows: 2, Map: Table{{0, 0, 8}}},
		"short":          {Name: "x", Width: 8, Height: 4, ScanRows: 2, Map: Table{{0, 0, 4}, Sentinel}},
		"out of range":   {Name: "x", Width: 8, Height: 4, ScanRows: 2, Map: Table{{0, 4, 8}, Sentinel}},
		"double":         {Name: "x", Width: 8, Height: 4, ScanRows: 1, Map: Table{{0, 0, 8}, {0, 0, 8}, Sentinel}},
		"bad row offset": {Name: "x", Width: 8, Height: 8, ScanRows: 2, Map: Table{{1, 0, 8}, {0, 0, 8}, Sentinel}},
		"bad scan":       {Name: "x", Width: 8, Height: 8, ScanRows: 3, Map: Straight(8)},
		"odd height":     {Name: "x", Width: 8, Height: 5, ScanRows: 1, Map: Straight(8)},
	}
	for name, p := range cases {
		err := p.Validate()
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}
