package scheduler

import (
	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
)

// State enumerates scheduler states.
type State string

const (
	Idle         State = "idle"
	ComputingRow State = "computing_row"
	Enqueued     State = "enqueued"
	Fault        State = "fault"
)

// Encoder is what the scheduler needs from a frame encoder. Both
// *encoder.HUB75 and *encoder.APA102 satisfy it.
type Encoder interface {
	Rows() int
	NewSlot() *encoder.Slot
	EncodeRow(row int, fill encoder.FillFunc, slot *encoder.Slot)
	SetBrightness(brightness, shifts int)
	SetRefreshRate(hz int) int
	RefreshRate() int
	TransitionBit() int
}

// Options tunes the engine. Zero values pick defaults.
type Options struct {
	Capacity       int // ring slots, default 4
	MinRefreshRate int // floor for adaptive lowering, default 30
	RateStep       int // Hz removed per lowering, default 10
	Brightness     int // 1..255; 0 means full
	Rotation       layer.Rotation
}

func (o Options) withDefaults() Options {
	if o.Capacity == 0 {
		o.Capacity = 4
	}
	if o.MinRefreshRate <= 0 {
		o.MinRefreshRate = 30
	}
	if o.RateStep <= 0 {
		o.RateStep = 10
	}
	if o.Brightness == 0 {
		o.Brightness = 255
	}
	return o
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	State         State
	RefreshRate   int
	TransitionBit int
	Brightness    int
	Rotation      layer.Rotation
	Queued        int
	Capacity      int

	// Sticky flags, cleared by ClearFlags.
	Underrun    bool
	RateLowered bool

	Frames    uint64
	Rows      uint64
	Underruns uint64
	RateDrops uint64
}
