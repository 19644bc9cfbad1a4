package panelmap

// Cursor walks a Table for a chain of identical panels, one row-offset group
// at a time. The encoder fills one logical row buffer per group, then asks
// the cursor to place the group's pixels at their physical positions.
type Cursor struct {
	table      Table
	runs       []Entry
	offsets    []int
	panels     int
	panelWidth int
	perPanel   int

	group int
}

// NewCursor prepares a walk over panels chained panels of panelWidth columns.
func NewCursor(t Table, panels, panelWidth int) *Cursor {
	c := &Cursor{
		table:      t,
		runs:       t.Runs(),
		offsets:    t.RowOffsets(),
		panels:     panels,
		panelWidth: panelWidth,
		perPanel:   t.Pixels(),
	}
	c.Reset()
	return c
}

// Reset rewinds to before the first group.
func (c *Cursor) Reset() { c.group = -1 }

// Next advances to the next row-offset group. It returns false once the
// sentinel has been reached.
func (c *Cursor) Next() bool {
	if c.group+1 >= len(c.offsets) {
		c.group = len(c.offsets)
		return false
	}
	c.group++
	return true
}

// RowOffset is the row offset of the current group.
func (c *Cursor) RowOffset() int { return c.offsets[c.group] }

// Map calls fn for every pixel of the current group across all panels, with
// src the column in the logical row buffer and dst the position in the
// physical shift order. It returns the number of pixels mapped.
func (c *Cursor) Map(fn func(src, dst int)) int {
	if c.group < 0 || c.group >= len(c.offsets) {
		return 0
	}
	row := c.offsets[c.group]
	n := 0
	for p := 0; p < c.panels; p++ {
		srcBase := p * c.panelWidth
		dst := p * c.perPanel
		for _, e := range c.runs {
			if e.RowOffset == row {
				for i := 0; i < e.Len(); i++ {
					fn(srcBase+e.Column(i), dst+i)
				}
				n += e.Len()
			}
			dst += e.Len()
		}
	}
	return n
}

// Walk visits every group in order and returns the total mapped pixels.
func (c *Cursor) Walk(fn func(rowOffset, src, dst int)) int {
	c.Reset()
	total := 0
	for c.Next() {
		row := c.RowOffset()
		total += c.Map(func(src, dst int) { fn(row, src, dst) })
	}
	return total
}
