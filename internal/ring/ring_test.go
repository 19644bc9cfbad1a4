package ring

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsSmallCapacity(t *testing.T) {
	for _, c := range []int{-1, 0, 1} {
		_, err := New(c)
		assert.ErrorIs(t, err, ErrCapacity, "capacity %d", c)
	}
	b, err := New(2)
	require.NoError(t, err)
	assert.True(t, b.IsEmpty())
	assert.False(t, b.IsFull())
}

func TestWriteReadOrder(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)

	var written []int
	for !b.IsFull() {
		written = append(written, b.NextWriteIndex())
		b.CommitWrite()
	}
	assert.Equal(t, []int{0, 1, 2}, written)
	assert.Equal(t, 3, b.Len())

	assert.Equal(t, 0, b.NextReadIndex())
	b.CommitRead()
	assert.Equal(t, 1, b.NextReadIndex())
	assert.Equal(t, 0, b.NextWriteIndex(), "write index wraps")

	// pure accessors do not mutate
	assert.Equal(t, b.NextWriteIndex(), b.NextWriteIndex())
	assert.Equal(t, 2, b.Len())
}

func TestCommitWriteWhenFullDropsOldest(t *testing.T) {
	b, _ := New(2)
	b.CommitWrite()
	b.CommitWrite()
	require.True(t, b.IsFull())

	b.CommitWrite()
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 1, b.NextReadIndex())
}

func TestCommitReadOnEmptyIsNoop(t *testing.T) {
	b, _ := New(4)
	b.CommitRead()
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.NextReadIndex())
}

func TestRandomInterleavingKeepsCountInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, capacity := range []int{2, 3, 5, 8} {
		b, _ := New(capacity)
		model := 0
		for i := 0; i < 10000; i++ {
			if rng.Intn(2) == 0 {
				if !b.IsFull() {
					idx := b.NextWriteIndex()
					require.True(t, idx >= 0 && idx < capacity)
					b.CommitWrite()
					model++
				}
			} else if !b.IsEmpty() {
				idx := b.NextReadIndex()
				require.True(t, idx >= 0 && idx < capacity)
				b.CommitRead()
				model--
			}
			require.Equal(t, model, b.Len())
			require.True(t, b.Len() >= 0 && b.Len() <= capacity)
		}
	}
}

func TestConcurrentProducerConsumerPreservesOrder(t *testing.T) {
	const n = 20000
	b, _ := New(4)
	slots := make([]int, b.Cap())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if b.IsFull() {
				runtime.Gosched()
				continue
			}
			slots[b.NextWriteIndex()] = i
			b.CommitWrite()
			i++
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(got) < n {
			if b.IsEmpty() {
				runtime.Gosched()
				continue
			}
			got = append(got, slots[b.NextReadIndex()])
			b.CommitRead()
		}
	}()
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("slot order broken at %d: got %d", i, v)
		}
	}
	assert.True(t, b.IsEmpty())
}
