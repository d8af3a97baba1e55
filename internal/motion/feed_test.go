package motion

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// sliceSource emits a fixed list of samples and then blocks until cancelled.
type sliceSource struct {
	samples  []Sample
	mu       sync.Mutex
	started  int
	interval time.Duration
}

func (s *sliceSource) Stream(ctx context.Context, interval time.Duration, out chan<- Sample) error {
	s.mu.Lock()
	s.started++
	s.interval = interval
	s.mu.Unlock()

	for _, sample := range s.samples {
		select {
		case out <- sample:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *sliceSource) starts() (int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.interval
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude(3, 4, 0), 1e-9)
	assert.InDelta(t, math.Sqrt(3), Sample{X: 1, Y: 1, Z: 1}.Magnitude(), 1e-9)
}

func TestFeed_DeliversToAllSubscribers(t *testing.T) {
	src := &sliceSource{samples: []Sample{{X: 1}, {X: 2}, {X: 3}}}
	feed := NewFeed(src, zap.NewNop())

	var mu sync.Mutex
	var got1, got2 []float64
	feed.Subscribe(func(s Sample) {
		mu.Lock()
		got1 = append(got1, s.X)
		mu.Unlock()
	})
	feed.Subscribe(func(s Sample) {
		mu.Lock()
		got2 = append(got2, s.X)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got1) == 3 && len(got2) == 3
	}, time.Second, 5*time.Millisecond)

	feed.UnsubscribeAll()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{1, 2, 3}, got1)
}

func TestFeed_SetIntervalAppliesOnStart(t *testing.T) {
	src := &sliceSource{}
	feed := NewFeed(src, nil)

	assert.Equal(t, DefaultInterval, feed.Interval())
	feed.SetInterval(250 * time.Millisecond)
	feed.Subscribe(func(Sample) {})

	require.Eventually(t, func() bool {
		n, _ := src.starts()
		return n == 1
	}, time.Second, 5*time.Millisecond)
	_, interval := src.starts()
	assert.Equal(t, 250*time.Millisecond, interval)

	feed.SetInterval(0)
	assert.Equal(t, DefaultInterval, feed.Interval())
	feed.UnsubscribeAll()
}

func TestFeed_UnsubscribeAllStopsStream(t *testing.T) {
	src := &sliceSource{}
	feed := NewFeed(src, nil)

	feed.Subscribe(func(Sample) {})
	done := feed.Done()
	require.NotNil(t, done)

	feed.UnsubscribeAll()
	feed.UnsubscribeAll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after UnsubscribeAll")
	}
}

func TestFeed_LastUnsubscribeStopsStream(t *testing.T) {
	src := &sliceSource{}
	feed := NewFeed(src, nil)

	a := feed.Subscribe(func(Sample) {})
	b := feed.Subscribe(func(Sample) {})
	done := feed.Done()

	a.Unsubscribe()
	select {
	case <-done:
		t.Fatal("feed stopped while a subscription was still live")
	case <-time.After(20 * time.Millisecond):
	}

	b.Unsubscribe()
	b.Unsubscribe()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after the last unsubscribe")
	}
}

func TestFeed_Restart(t *testing.T) {
	src := &sliceSource{}
	feed := NewFeed(src, nil)

	feed.Subscribe(func(Sample) {})
	feed.UnsubscribeAll()
	feed.Subscribe(func(Sample) {})
	defer feed.UnsubscribeAll()

	require.Eventually(t, func() bool {
		n, _ := src.starts()
		return n == 2
	}, time.Second, 5*time.Millisecond)
}

func TestUnavailable(t *testing.T) {
	u := NewUnavailable(zap.NewNop())
	assert.False(t, u.Available())

	called := false
	sub := u.Subscribe(func(Sample) { called = true })
	sub.Unsubscribe()
	u.SetInterval(time.Second)
	u.UnsubscribeAll()
	assert.False(t, called)
}

func TestChannelSource(t *testing.T) {
	src := NewChannelSource(2)
	assert.True(t, src.Push(Sample{X: 1}))
	assert.True(t, src.Push(Sample{X: 2}))
	assert.False(t, src.Push(Sample{X: 3}))
	assert.Equal(t, int64(1), src.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Sample, 4)
	errCh := make(chan error, 1)
	go func() { errCh <- src.Stream(ctx, 50*time.Millisecond, out) }()

	assert.Equal(t, 1.0, (<-out).X)
	assert.Equal(t, 2.0, (<-out).X)
	assert.Equal(t, 50*time.Millisecond, src.Interval())

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestChannelSource_PushAllIsAllOrNothing(t *testing.T) {
	src := NewChannelSource(3)
	require.True(t, src.Push(Sample{X: 1}))

	assert.False(t, src.PushAll([]Sample{{X: 2}, {X: 3}, {X: 4}}))
	assert.Equal(t, int64(3), src.Dropped())

	assert.True(t, src.PushAll([]Sample{{X: 2}, {X: 3}}))
	assert.False(t, src.Push(Sample{X: 5}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan Sample, 4)
	go func() { _ = src.Stream(ctx, 0, out) }()
	for _, want := range []float64{1, 2, 3} {
		assert.Equal(t, want, (<-out).X)
	}
}
