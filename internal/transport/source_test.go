package transport

import (
	"sync"

	"github.com/coreman2200/arcaluminis-matrix/internal/encoder"
)

// lockedSource is a queueSource safe for the background pump.
type lockedSource struct {
	mu sync.Mutex
	q  queueSource
}

func (l *lockedSource) NextReadSlot() (*encoder.Slot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.NextReadSlot()
}

func (l *lockedSource) MarkSlotConsumed() {
	l.mu.Lock()
	l.q.MarkSlotConsumed()
	l.mu.Unlock()
}

func (l *lockedSource) OnCalculationNeeded() {
	l.mu.Lock()
	l.q.OnCalculationNeeded()
	l.mu.Unlock()
}

func (l *lockedSource) OnUnderrun() {
	l.mu.Lock()
	l.q.underruns++
	l.mu.Unlock()
}

func (l *lockedSource) underruns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.underruns
}
