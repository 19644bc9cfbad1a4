// Package transport moves encoded rows from the ring buffer to hardware.
//
// A transport runs its own goroutine (the hardware context). It pulls slots
// from a Source, shows them, and tells the Source when a slot is done so the
// calculation side can refill it.
package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
	"github.com/coreman2200/arcaluminis-matrix/internal/layer"
)

// Transport is the hardware side of the refresh engine.
type Transport interface {
	Start(src Source) error
	Stop() error
	// SetRefreshRate negotiates a new rate and returns the one it will run.
	SetRefreshRate(requested int) int
	// RecoverFromUnderrun blanks the output until fresh rows arrive.
	RecoverFromUnderrun()
}

// Source is implemented by the scheduler.
type Source interface {
	NextReadSlot() (*encoder.Slot, bool)
	MarkSlotConsumed()
	OnCalculationNeeded()
	OnUnderrun()
}

// RowDecoder turns an encoded slot back into pixels.
type RowDecoder interface {
	DecodeRow(slot *encoder.Slot, set func(x, y int, c layer.RGB48))
}

var (
	ErrRunning    = errors.New("transport: already running")
	ErrNotRunning = errors.New("transport: not running")
)

// pump paces rows out of a Source. A rate of zero disables the goroutine;
// callers then drive it with Tick.
type pump struct {
	log  zerolog.Logger
	rows int
	rate atomic.Int64

	mu      sync.Mutex
	src     Source
	show    func(*encoder.Slot) error
	stop    chan struct{}
	done    chan struct{}
	retick  chan struct{}
	failed  atomic.Bool
	shown   atomic.Uint64
	starved atomic.Uint64
}

func newPump(rows, rate int, log zerolog.Logger) *pump {
	p := &pump{log: log, rows: max(rows, 1), retick: make(chan struct{}, 1)}
	p.rate.Store(int64(rate))
	return p
}

func (p *pump) interval() time.Duration {
	rate := p.rate.Load()
	if rate <= 0 {
		return 0
	}
	d := time.Second / time.Duration(rate*int64(p.rows))
	if d < time.Microsecond {
		d = time.Microsecond
	}
	return d
}

func (p *pump) start(src Source, show func(*encoder.Slot) error, background bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.src != nil {
		return ErrRunning
	}
	p.src, p.show = src, show
	if !background || p.interval() == 0 {
		return nil
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
	return nil
}

func (p *pump) halt() error {
	p.mu.Lock()
	if p.src == nil {
		p.mu.Unlock()
		return ErrNotRunning
	}
	stop, done := p.stop, p.done
	p.src, p.show, p.stop, p.done = nil, nil, nil, nil
	p.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (p *pump) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-p.retick:
			if d := p.interval(); d > 0 {
				ticker.Reset(d)
			}
		case <-ticker.C:
			p.Tick()
		}
	}
}

// setRate stores a new rate and re-arms the ticker.
func (p *pump) setRate(hz int) int {
	if hz <= 0 {
		return int(p.rate.Load())
	}
	p.rate.Store(int64(hz))
	select {
	case p.retick <- struct{}{}:
	default:
	}
	return hz
}

// Tick shows one row if one is ready. It reports whether a row was shown.
func (p *pump) Tick() bool {
	p.mu.Lock()
	src, show := p.src, p.show
	p.mu.Unlock()
	if src == nil {
		return false
	}
	slot, ok := src.NextReadSlot()
	if !ok {
		p.starved.Add(1)
		src.OnUnderrun()
		return false
	}
	if err := show(slot); err != nil && !p.failed.Swap(true) {
		p.log.Error().Err(err).Int("row", slot.Row).Msg("transport write failed")
	}
	p.shown.Add(1)
	src.MarkSlotConsumed()
	src.OnCalculationNeeded()
	return true
}

// Shown and Starved count rows shown and ticks that found the ring empty.
func (p *pump) Shown() uint64   { return p.shown.Load() }
func (p *pump) Starved() uint64 { return p.starved.Load() }

// RefreshRate is the rate the transport is pacing at.
func (p *pump) RefreshRate() int { return int(p.rate.Load()) }
