package motion

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ChannelSource is a Source fed by Push, used when samples arrive from
// outside the process (for example over HTTP). The pushing device owns the
// cadence, so the interval handed to Stream is only reported back to it.
type ChannelSource struct {
	pushMu   sync.Mutex
	samples  chan Sample
	interval atomic.Int64
	dropped  atomic.Int64
}

// NewChannelSource creates a source buffering up to bufferSize samples.
func NewChannelSource(bufferSize int) *ChannelSource {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	s := &ChannelSource{samples: make(chan Sample, bufferSize)}
	s.interval.Store(int64(DefaultInterval))
	return s
}

// Push enqueues a sample. When the buffer is full the sample is dropped and
// false is returned.
func (s *ChannelSource) Push(sample Sample) bool {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	select {
	case s.samples <- sample:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// PushAll enqueues every sample or none of them. When the buffer cannot
// hold the whole slice nothing is enqueued, all samples count as dropped
// and false is returned.
func (s *ChannelSource) PushAll(samples []Sample) bool {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	// the consumer only frees space, so a fit checked here still holds below
	if cap(s.samples)-len(s.samples) < len(samples) {
		s.dropped.Add(int64(len(samples)))
		return false
	}
	for _, sample := range samples {
		s.samples <- sample
	}
	return true
}

// Interval returns the cadence most recently requested by a consumer.
func (s *ChannelSource) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Dropped returns the number of samples discarded because the buffer was full.
func (s *ChannelSource) Dropped() int64 {
	return s.dropped.Load()
}

func (s *ChannelSource) Stream(ctx context.Context, interval time.Duration, out chan<- Sample) error {
	s.interval.Store(int64(interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample := <-s.samples:
			select {
			case out <- sample:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
