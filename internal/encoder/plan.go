package encoder

import "sort"

// Timer describes the clock the transport paces bit-planes with.
type Timer struct {
	TimerHz      int // tick rate of Timing values
	PixelClockHz int // HUB75 shift clock
	LatchClocks  int // pixel clocks spent latching a plane
}

// DefaultTimer matches a 40 MHz timer and 20 MHz pixel clock.
var DefaultTimer = Timer{TimerHz: 40_000_000, PixelClockHz: 20_000_000, LatchClocks: 4}

// descriptorBytes is the per-pass overhead a transport keeps for each plane
// repetition.
const descriptorBytes = 12

// Plan is the outcome of the transition-bit search.
type Plan struct {
	Depth         int
	TransitionBit int    // lsbMsbTransitionBit
	Unit          uint32 // on-time of the bits above the transition, in ticks
	RefreshRate   int    // achieved frames per second
	RowTicks      uint32 // ticks to show one scan row at Unit
	RowBudget     uint32 // ticks available per row at the requested rate
	Passes        int
	BufferBytes   int
	MinPeriod     uint32
	LatchTicks    uint32
}

// planInput is everything the search depends on.
type planInput struct {
	timer          Timer
	depth          int
	scanRows       int
	budgetRows     int // rows the frame time is split across, 0 = scanRows
	wordsPerPlane  int
	capacity       int
	maxBufferBytes int
	refreshRate    int
}

func ceilDiv(a, b uint64) uint64 { return (a + b - 1) / b }

func (in planInput) latchTicks() uint32 {
	return uint32(ceilDiv(uint64(in.timer.LatchClocks)*uint64(in.timer.TimerHz), uint64(in.timer.PixelClockHz)))
}

func (in planInput) minPeriod() uint32 {
	clocks := uint64(in.wordsPerPlane + in.timer.LatchClocks)
	return uint32(ceilDiv(clocks*uint64(in.timer.TimerHz), uint64(in.timer.PixelClockHz)))
}

// passes is the number of plane emissions per row for transition bit t.
func passes(depth, t int) int {
	return (t + 1) + (1 << (depth - t - 1)) - 1
}

// idealOnTime returns the unscaled on-time and repeat count of bit b.
func idealOnTime(b, t int, unit uint32) (uint32, int) {
	if b <= t {
		return unit >> uint(t+1-b), 1
	}
	return unit, 1 << uint(b-t-1)
}

func (in planInput) period(ideal uint32) uint32 {
	p := ideal + in.latchTicks()
	if mp := in.minPeriod(); p < mp {
		return mp
	}
	return p
}

func (in planInput) rowTicks(t int, unit uint32) uint64 {
	var total uint64
	for b := 0; b < in.depth; b++ {
		ideal, rep := idealOnTime(b, t, unit)
		total += uint64(in.period(ideal)) * uint64(rep)
	}
	return total
}

func (in planInput) bufferBytes(t int) int {
	perRow := in.depth*in.wordsPerPlane*2 + passes(in.depth, t)*descriptorBytes
	return in.capacity * perRow
}

func (in planInput) rowBudget(rate int) uint64 {
	rows := in.scanRows
	if in.budgetRows > 0 {
		rows = in.budgetRows
	}
	return uint64(in.timer.TimerHz) / (uint64(rate) * uint64(rows))
}

// unitFor finds the largest unit whose row fits budget, keeping t fixed.
// ok is false when even the smallest unit does not fit.
func (in planInput) unitFor(t int, budget uint64) (uint32, bool) {
	umin := uint32(1) << uint(t+1)
	if in.rowTicks(t, umin) > budget {
		return umin, false
	}
	hi := budget
	if hi > 1<<31 {
		hi = 1 << 31
	}
	span := int(hi) - int(umin) + 1
	// First unit past the budget, then step back.
	k := sort.Search(span, func(i int) bool {
		return in.rowTicks(t, umin+uint32(i)) > budget
	})
	return umin + uint32(k) - 1, true
}

func (in planInput) finish(t int, unit uint32) Plan {
	rt := in.rowTicks(t, unit)
	return Plan{
		Depth:         in.depth,
		TransitionBit: t,
		Unit:          unit,
		RefreshRate:   int(uint64(in.timer.TimerHz) / (rt * uint64(in.scanRows))),
		RowTicks:      uint32(rt),
		RowBudget:     uint32(in.rowBudget(in.refreshRate)),
		Passes:        passes(in.depth, t),
		BufferBytes:   in.bufferBytes(t),
		MinPeriod:     in.minPeriod(),
		LatchTicks:    in.latchTicks(),
	}
}

// search picks the smallest transition bit that fits both the memory budget
// and the requested refresh rate, falling back to a reduced rate at the
// highest transition bit.
func (in planInput) search() (Plan, error) {
	switch {
	case in.depth < 1 || in.depth > 16:
		return Plan{}, Configf("color depth %d out of range 1..16", in.depth)
	case in.refreshRate <= 0:
		return Plan{}, Configf("refresh rate %d must be positive", in.refreshRate)
	case in.scanRows <= 0 || in.wordsPerPlane <= 0:
		return Plan{}, Configf("empty panel geometry")
	case in.budgetRows < 0:
		return Plan{}, Configf("budget rows %d must not be negative", in.budgetRows)
	case in.timer.TimerHz <= 0 || in.timer.PixelClockHz <= 0 || in.timer.LatchClocks < 0:
		return Plan{}, Configf("invalid timer %+v", in.timer)
	}
	budget := in.rowBudget(in.refreshRate)
	for t := 0; t < in.depth; t++ {
		memOK := in.maxBufferBytes <= 0 || in.bufferBytes(t) <= in.maxBufferBytes
		if memOK {
			if unit, ok := in.unitFor(t, budget); ok {
				return in.finish(t, unit), nil
			}
		}
		if t == in.depth-1 {
			if !memOK {
				return Plan{}, Configf("row buffers need %d bytes, limit is %d", in.bufferBytes(t), in.maxBufferBytes)
			}
			umin := uint32(1) << uint(t+1)
			p := in.finish(t, umin)
			if p.RefreshRate < 1 {
				return Plan{}, Configf("timer at %d Hz cannot show one frame per second", in.timer.TimerHz)
			}
			return p, nil
		}
	}
	return Plan{}, Configf("no transition bit found")
}

// retime recomputes the unit for a new rate with t fixed.
func (in planInput) retime(t, rate int) Plan {
	in.refreshRate = rate
	unit, ok := in.unitFor(t, in.rowBudget(rate))
	if !ok {
		unit = uint32(1) << uint(t+1)
	}
	return in.finish(t, unit)
}

// lut returns the per-bit timing at the given effective brightness.
func (in planInput) lut(p Plan, brightness int) []Timing {
	out := make([]Timing, in.depth)
	for b := range out {
		ideal, _ := idealOnTime(b, p.TransitionBit, p.Unit)
		out[b] = Timing{
			Period: in.period(ideal),
			OnTime: uint32(uint64(ideal) * uint64(brightness) / 255),
		}
	}
	return out
}
