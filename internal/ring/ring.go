// Package ring is the fixed-capacity slot-index FIFO shared between the
// calculation goroutine (producer) and the transport (consumer).
//
// The buffer stores no data itself: it hands out slot indices into storage
// owned by the caller. start and count live in one atomic word so either side
// always observes a consistent pair. The atomic update also orders the slot
// contents: data written before CommitWrite is visible to a reader that
// observed the new count, and a slot released by CommitRead is not handed to
// the producer until the consumer is done with it.
package ring

import (
	"errors"
	"sync/atomic"
)

// ErrCapacity is returned by New for capacities below two.
var ErrCapacity = errors.New("ring: capacity must be at least 2")

// Buffer is a lock-free single-producer/single-consumer index ring.
type Buffer struct {
	capacity uint32
	state    atomic.Uint64 // start<<32 | count
}

// New returns an empty ring with the given number of slots.
func New(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, ErrCapacity
	}
	return &Buffer{capacity: uint32(capacity)}, nil
}

func pack(start, count uint32) uint64 { return uint64(start)<<32 | uint64(count) }

func unpack(s uint64) (start, count uint32) { return uint32(s >> 32), uint32(s) }

func (b *Buffer) load() (start, count uint32) { return unpack(b.state.Load()) }

// Cap is the number of slots.
func (b *Buffer) Cap() int { return int(b.capacity) }

// Len is the number of committed, unread slots.
func (b *Buffer) Len() int {
	_, count := b.load()
	return int(count)
}

func (b *Buffer) IsFull() bool {
	_, count := b.load()
	return count >= b.capacity
}

func (b *Buffer) IsEmpty() bool {
	_, count := b.load()
	return count == 0
}

// NextWriteIndex is the slot the producer fills next. It does not reserve it.
func (b *Buffer) NextWriteIndex() int {
	start, count := b.load()
	return int((start + count) % b.capacity)
}

// CommitWrite publishes the slot returned by NextWriteIndex.
//
// Callers must check IsFull first. If the ring is full anyway the oldest
// slot is dropped so the indices stay valid.
func (b *Buffer) CommitWrite() {
	for {
		old := b.state.Load()
		start, count := unpack(old)
		if count < b.capacity {
			count++
		} else {
			start = (start + 1) % b.capacity
		}
		if b.state.CompareAndSwap(old, pack(start, count)) {
			return
		}
	}
}

// NextReadIndex is the oldest committed slot. Only meaningful when !IsEmpty.
func (b *Buffer) NextReadIndex() int {
	start, _ := b.load()
	return int(start)
}

// CommitRead releases the slot returned by NextReadIndex.
// It is a no-op on an empty ring.
func (b *Buffer) CommitRead() {
	for {
		old := b.state.Load()
		start, count := unpack(old)
		if count == 0 {
			return
		}
		if b.state.CompareAndSwap(old, pack((start+1)%b.capacity, count-1)) {
			return
		}
	}
}
