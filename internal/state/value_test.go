package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestValueGetSet(t *testing.T) {
	v := New(1)
	assert.Equal(t, 1, v.Get())
	v.Set(2)
	assert.Equal(t, 2, v.Get())
	v.Update(func(n int) int { return n * 10 })
	assert.Equal(t, 20, v.Get())
}

func TestSubscribeReceivesCurrentThenChanges(t *testing.T) {
	v := New("initial")
	ch, cancel := v.Subscribe()
	defer cancel()

	assert.Equal(t, "initial", recv(t, ch))
	v.Set("loading")
	assert.Equal(t, "loading", recv(t, ch))
}

func TestSubscribeConflates(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	defer cancel()

	for i := 1; i <= 100; i++ {
		v.Set(i)
	}
	// Only the latest value is buffered.
	assert.Equal(t, 100, recv(t, ch))
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra value %d", got)
	default:
	}
}

func TestCancelClosesAndUnsubscribes(t *testing.T) {
	v := New(0)
	ch, cancel := v.Subscribe()
	require.Equal(t, 1, v.Subscribers())

	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, v.Subscribers())

	// drain the initial value, then expect closed
	for range ch {
	}
	v.Set(5) // must not panic on a closed subscriber
}

func TestConcurrentReadersSingleWriter(t *testing.T) {
	v := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := v.Subscribe()
			defer cancel()
			for {
				if n := <-ch; n == 1000 {
					return
				}
			}
		}()
	}
	for i := 1; i <= 1000; i++ {
		v.Set(i)
	}
	wg.Wait()
	assert.Equal(t, 1000, v.Get())
}
