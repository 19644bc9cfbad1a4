// Package scheduler runs the calculation side of the refresh engine: it
// keeps the ring buffer full of encoded rows and reacts to what the
// transport reports.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
	"github.com/coreman2200/arcaluminis-matrix/internal/ring"
	"github.com/coreman2200/arcaluminis-matrix/internal/transport"
)

// ErrFault is returned once the engine has failed configuration.
var ErrFault = errors.New("scheduler: engine in fault state")

const none = -1

// Engine owns the ring buffer, the layer chain and the encoder for one
// display. Control calls may come from any goroutine; they are latched and
// applied at the next frame boundary.
type Engine struct {
	log   zerolog.Logger
	opts  Options
	enc   Encoder
	chain *layer.Chain
	tr    transport.Transport
	ring  *ring.Buffer
	slots []*encoder.Slot
	wake  chan struct{}

	// refresh goroutine only
	row        int
	shifts     int
	brightness int
	rotation   layer.Rotation
	logged     uint64

	state atomic.Value // State
	rate  atomic.Int64
	tbit  atomic.Int64

	pendingRotation   atomic.Int64
	pendingBrightness atomic.Int64
	pendingRate       atomic.Int64
	lowerRate         atomic.Bool

	inUnderrun  atomic.Bool
	underrun    atomic.Bool
	rateLowered atomic.Bool

	frames    atomic.Uint64
	rows      atomic.Uint64
	underruns atomic.Uint64
	rateDrops atomic.Uint64

	curBrightness atomic.Int64
	curRotation   atomic.Int64
}

// New wires enc, chain and tr together. Nothing runs until Start.
func New(enc Encoder, chain *layer.Chain, tr transport.Transport, o Options, log zerolog.Logger) (*Engine, error) {
	if enc == nil || chain == nil || tr == nil {
		return nil, encoder.Configf("scheduler needs an encoder, a layer chain and a transport")
	}
	o = o.withDefaults()
	rb, err := ring.New(o.Capacity)
	if err != nil {
		return nil, &encoder.ConfigurationError{Reason: "ring buffer", Err: err}
	}
	if o.Brightness < 0 || o.Brightness > 255 {
		return nil, encoder.Configf("brightness %d out of range 0..255", o.Brightness)
	}
	e := &Engine{
		log:        log,
		opts:       o,
		enc:        enc,
		chain:      chain,
		tr:         tr,
		ring:       rb,
		slots:      make([]*encoder.Slot, o.Capacity),
		wake:       make(chan struct{}, 1),
		brightness: o.Brightness,
		rotation:   o.Rotation,
	}
	for i := range e.slots {
		e.slots[i] = enc.NewSlot()
	}
	e.state.Store(Idle)
	e.rate.Store(int64(enc.RefreshRate()))
	e.tbit.Store(int64(enc.TransitionBit()))
	e.pendingRotation.Store(none)
	e.pendingBrightness.Store(none)
	e.curBrightness.Store(int64(o.Brightness))
	e.curRotation.Store(int64(o.Rotation))

	chain.SetRotation(o.Rotation)
	chain.SetRefreshRate(enc.RefreshRate())
	e.applyBrightness()
	return e, nil
}

// Start negotiates the refresh rate, fills the ring and starts the
// transport. A transport that cannot run any rate puts the engine in Fault.
func (e *Engine) Start() error {
	if e.State() == Fault {
		return ErrFault
	}
	want := e.enc.RefreshRate()
	got := e.tr.SetRefreshRate(want)
	if got <= 0 {
		e.state.Store(Fault)
		return encoder.Configf("transport cannot run %d Hz", want)
	}
	if got != want {
		got = e.enc.SetRefreshRate(got)
		e.chain.SetRefreshRate(got)
	}
	e.rate.Store(int64(got))
	e.fill()
	if err := e.tr.Start(e); err != nil {
		e.state.Store(Fault)
		return fmt.Errorf("start transport: %w", err)
	}
	e.log.Info().Int("refresh_hz", got).Int("transition_bit", e.enc.TransitionBit()).Int("slots", e.opts.Capacity).Msg("refresh started")
	return nil
}

// Run is the calculation loop. It refills the ring every time the transport
// frees a slot, until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if e.State() == Fault {
		return ErrFault
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.wake:
			e.fill()
		}
	}
}

// Stop halts the transport.
func (e *Engine) Stop() error { return e.tr.Stop() }

// fill encodes rows until the ring is full. More than twice the ring's
// capacity in one pass means the transport drains as fast as rows are made,
// so the rate is lowered and the loop yields.
func (e *Engine) fill() {
	rows := e.enc.Rows()
	produced := 0
	for !e.ring.IsFull() {
		if produced >= 2*e.opts.Capacity {
			e.lowerRate.Store(true)
			break
		}
		e.state.Store(ComputingRow)
		if e.row == 0 {
			e.frameBoundary()
		}
		slot := e.slots[e.ring.NextWriteIndex()]
		e.enc.EncodeRow(e.row, e.chain.FillRow, slot)
		e.ring.CommitWrite()
		e.inUnderrun.Store(false)
		e.state.Store(Enqueued)
		e.rows.Add(1)
		e.row = (e.row + 1) % rows
		produced++
	}
	if n := e.underruns.Load(); n != e.logged {
		e.log.Warn().Uint64("underruns", n).Msg("ring buffer underrun")
		e.logged = n
	}
	e.state.Store(Idle)
}

// frameBoundary applies everything latched since the previous frame.
func (e *Engine) frameBoundary() {
	if r := e.pendingRotation.Swap(none); r != none {
		e.rotation = layer.Rotation(r)
		e.curRotation.Store(r)
		e.chain.SetRotation(e.rotation)
	}
	if b := e.pendingBrightness.Swap(none); b != none {
		e.brightness = int(b)
		e.curBrightness.Store(b)
	}
	if hz := e.pendingRate.Swap(0); hz > 0 {
		e.lowerRate.Store(false)
		e.applyRate(int(hz))
	} else if e.lowerRate.Swap(false) {
		e.lower()
	}
	e.applyBrightness()
	e.chain.FrameRefresh()
	e.chain.SetRefreshRate(int(e.rate.Load()))
	e.frames.Add(1)
}

func (e *Engine) applyBrightness() {
	k := e.chain.RequestedBrightnessShifts()
	e.chain.ApplyBrightnessShifts(k)
	e.shifts = k
	e.enc.SetBrightness(e.brightness, k)
}

func (e *Engine) applyRate(hz int) int {
	got := e.enc.SetRefreshRate(e.tr.SetRefreshRate(hz))
	e.rate.Store(int64(got))
	e.tbit.Store(int64(e.enc.TransitionBit()))
	return got
}

func (e *Engine) lower() {
	cur := int(e.rate.Load())
	target := max(cur-e.opts.RateStep, e.opts.MinRefreshRate)
	if target >= cur {
		return
	}
	got := e.applyRate(target)
	e.rateLowered.Store(true)
	e.rateDrops.Add(1)
	e.log.Warn().Int("from_hz", cur).Int("to_hz", got).Msg("refresh rate lowered")
}

// IsRowBufferFree reports whether a slot is free for the next row.
func (e *Engine) IsRowBufferFree() bool { return !e.ring.IsFull() }

// NextReadSlot implements transport.Source.
func (e *Engine) NextReadSlot() (*encoder.Slot, bool) {
	if e.ring.IsEmpty() {
		return nil, false
	}
	return e.slots[e.ring.NextReadIndex()], true
}

// MarkSlotConsumed implements transport.Source.
func (e *Engine) MarkSlotConsumed() { e.ring.CommitRead() }

// OnCalculationNeeded implements transport.Source. It never blocks.
func (e *Engine) OnCalculationNeeded() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// OnUnderrun implements transport.Source. The first call of an empty
// episode raises the flag, blanks the output and asks for a lower rate;
// repeats within the episode only wake the calculation loop.
//
// A row committed after the transport saw an empty ring makes the report
// stale; it is dropped when the ring is no longer empty. A commit landing
// between that check and the CAS can still blank once.
func (e *Engine) OnUnderrun() {
	if !e.ring.IsEmpty() {
		e.OnCalculationNeeded()
		return
	}
	if e.inUnderrun.CompareAndSwap(false, true) {
		e.underrun.Store(true)
		e.underruns.Add(1)
		e.lowerRate.Store(true)
		e.tr.RecoverFromUnderrun()
	}
	e.OnCalculationNeeded()
}

// SetRotation takes effect at the next frame.
func (e *Engine) SetRotation(r layer.Rotation) { e.pendingRotation.Store(int64(r)) }

// SetBrightness takes effect at the next frame. Values are clamped to 0..255.
func (e *Engine) SetBrightness(b int) {
	e.pendingBrightness.Store(int64(min(max(b, 0), 255)))
}

// SetRefreshRate requests a new rate at the next frame. It also cancels
// any pending adaptive lowering.
func (e *Engine) SetRefreshRate(hz int) {
	if hz > 0 {
		e.pendingRate.Store(int64(hz))
	}
}

func (e *Engine) State() State { return e.state.Load().(State) }

// Status returns a snapshot; safe from any goroutine.
func (e *Engine) Status() Status {
	return Status{
		State:         e.State(),
		RefreshRate:   int(e.rate.Load()),
		TransitionBit: int(e.tbit.Load()),
		Brightness:    int(e.curBrightness.Load()),
		Rotation:      layer.Rotation(e.curRotation.Load()),
		Queued:        e.ring.Len(),
		Capacity:      e.ring.Cap(),
		Underrun:      e.underrun.Load(),
		RateLowered:   e.rateLowered.Load(),
		Frames:        e.frames.Load(),
		Rows:          e.rows.Load(),
		Underruns:     e.underruns.Load(),
		RateDrops:     e.rateDrops.Load(),
	}
}

// ClearFlags resets the sticky Underrun and RateLowered flags.
func (e *Engine) ClearFlags() {
	e.underrun.Store(false)
	e.rateLowered.Store(false)
}
