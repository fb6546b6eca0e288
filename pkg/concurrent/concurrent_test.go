package concurrent

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCancelsSiblingsOnError(t *testing.T) {
	boom := errors.New("boom")
	var cancelled atomic.Bool

	err := Run(context.Background(),
		func(context.Context) error { return boom },
		func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return nil
			case <-time.After(5 * time.Second):
				return errors.New("sibling was not cancelled")
			}
		},
	)

	assert.ErrorIs(t, err, boom)
	assert.True(t, cancelled.Load())
}

func TestRunStopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	assert.NoError(t, err)
}

func TestConcurrentVisitsEveryItem(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	err := Concurrent([]int{3, 1, 2}, 2, func(v int) error {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	sort.Ints(seen)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestConcurrentRespectsLimit(t *testing.T) {
	var running, peak atomic.Int32
	err := Concurrent(make([]struct{}, 8), 2, func(struct{}) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestConcurrentReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := Concurrent([]string{"a", "b"}, 0, func(v string) error {
		if v == "b" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestMerge(t *testing.T) {
	a := make(chan int)
	b := make(chan int)
	go func() { a <- 1; a <- 2; close(a) }()
	go func() { b <- 3; close(b) }()

	var got []int
	for v := range Merge[int](a, b) {
		got = append(got, v)
	}
	sort.Ints(got)
	assert.Equal(t, []int{1, 2, 3}, got)
}
