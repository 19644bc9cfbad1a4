// Package panelmap describes how the pixels of a logical row are wired to
// the shift-register positions of a HUB75 panel chain.
//
// A Table lists pixel runs in the order they are clocked into the panel. Each
// Entry takes NumPixels pixels of logical row (scanRow + RowOffset), starting
// at column BufferOffset; a negative NumPixels walks the columns downwards
// from BufferOffset. The physical position of a run is the sum of the run
// lengths that precede it. Tables end with the all-zero Sentinel.
package panelmap

import (
	"errors"
	"fmt"
)

// Entry is one pixel run.
type Entry struct {
	RowOffset    int
	BufferOffset int
	NumPixels    int
}

// Sentinel terminates every Table.
var Sentinel = Entry{}

// IsSentinel reports whether e ends a table.
func (e Entry) IsSentinel() bool { return e == Sentinel }

// Len is the absolute run length.
func (e Entry) Len() int {
	if e.NumPixels < 0 {
		return -e.NumPixels
	}
	return e.NumPixels
}

// Reversed reports whether the run walks columns downwards.
func (e Entry) Reversed() bool { return e.NumPixels < 0 }

// Column returns the logical column of the i-th pixel in the run.
func (e Entry) Column(i int) int {
	if e.Reversed() {
		return e.BufferOffset - i
	}
	return e.BufferOffset + i
}

// Table is a Sentinel-terminated list of runs.
type Table []Entry

// Straight maps a row of width pixels one to one.
func Straight(width int) Table {
	return Table{{RowOffset: 0, BufferOffset: 0, NumPixels: width}, Sentinel}
}

// Runs returns the entries before the sentinel. A table missing its sentinel
// is returned whole.
func (t Table) Runs() []Entry {
	for i, e := range t {
		if e.IsSentinel() {
			return t[:i]
		}
	}
	return t
}

// Pixels is the total number of pixels the table maps per pass.
func (t Table) Pixels() int {
	n := 0
	for _, e := range t.Runs() {
		n += e.Len()
	}
	return n
}

// RowOffsets lists the distinct row offsets in order of first appearance.
func (t Table) RowOffsets() []int {
	var out []int
	seen := map[int]bool{}
	for _, e := range t.Runs() {
		if !seen[e.RowOffset] {
			seen[e.RowOffset] = true
			out = append(out, e.RowOffset)
		}
	}
	return out
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("panelmap: invalid panel description")

// Panel is one physical panel type.
type Panel struct {
	Name     string
	Width    int // columns per panel
	Height   int // rows per panel
	ScanRows int // rows selected by the address lines
	Map      Table
}

// RowsPerHalf is the number of logical rows driven by each color bank.
func (p Panel) RowsPerHalf() int { return p.Height / 2 }

// PixelsPerLatch is the number of pixel clocks one panel needs per pass.
func (p Panel) PixelsPerLatch() int {
	if p.ScanRows == 0 {
		return 0
	}
	return p.Width * p.RowsPerHalf() / p.ScanRows
}

// AddressBits is the number of address lines needed for ScanRows.
func (p Panel) AddressBits() int {
	n := 0
	for (1 << n) < p.ScanRows {
		n++
	}
	return n
}

// Validate checks that the map covers every pixel the panel clocks exactly
// once and that every run stays inside the panel.
func (p Panel) Validate() error {
	if p.Width <= 0 || p.Height <= 0 || p.Height%2 != 0 {
		return fmt.Errorf("%w: %s: bad size %dx%d", ErrInvalid, p.Name, p.Width, p.Height)
	}
	if p.ScanRows <= 0 || p.RowsPerHalf()%p.ScanRows != 0 {
		return fmt.Errorf("%w: %s: %d scan rows do not divide %d rows", ErrInvalid, p.Name, p.ScanRows, p.RowsPerHalf())
	}
	if p.AddressBits() > 5 {
		return fmt.Errorf("%w: %s: %d scan rows need more than 5 address lines", ErrInvalid, p.Name, p.ScanRows)
	}
	runs := p.Map.Runs()
	if len(runs) == len(p.Map) {
		return fmt.Errorf("%w: %s: map has no sentinel", ErrInvalid, p.Name)
	}
	covered := map[[2]int]bool{}
	for i, e := range runs {
		if e.NumPixels == 0 {
			return fmt.Errorf("%w: %s: entry %d is empty", ErrInvalid, p.Name, i)
		}
		if e.RowOffset < 0 || e.RowOffset >= p.RowsPerHalf() || e.RowOffset%p.ScanRows != 0 {
			return fmt.Errorf("%w: %s: entry %d row offset %d", ErrInvalid, p.Name, i, e.RowOffset)
		}
		for k := 0; k < e.Len(); k++ {
			col := e.Column(k)
			if col < 0 || col >= p.Width {
				return fmt.Errorf("%w: %s: entry %d column %d out of range", ErrInvalid, p.Name, i, col)
			}
			key := [2]int{e.RowOffset, col}
			if covered[key] {
				return fmt.Errorf("%w: %s: entry %d maps row offset %d column %d twice", ErrInvalid, p.Name, i, e.RowOffset, col)
			}
			covered[key] = true
		}
	}
	if got, want := p.Map.Pixels(), p.PixelsPerLatch(); got != want {
		return fmt.Errorf("%w: %s: map covers %d pixels, panel clocks %d", ErrInvalid, p.Name, got, want)
	}
	return nil
}
