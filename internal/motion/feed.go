package motion

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/logger"
)

// Source produces samples until ctx is cancelled or the stream ends.
// Implementations must not close out.
type Source interface {
	Stream(ctx context.Context, interval time.Duration, out chan<- Sample) error
}

// Feed turns a Source into a Sensor. The source runs while at least one
// subscription is live and samples are delivered to handlers one at a time.
type Feed struct {
	source   Source
	logger   *zap.Logger
	interval time.Duration
	handlers map[uint64]func(Sample)
	nextID   uint64
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewFeed creates a full-capability sensor backed by source.
func NewFeed(source Source, log *zap.Logger) *Feed {
	return &Feed{
		source:   source,
		logger:   logger.OrNop(log),
		interval: DefaultInterval,
		handlers: make(map[uint64]func(Sample)),
	}
}

func (f *Feed) Available() bool { return true }

func (f *Feed) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	f.mu.Lock()
	f.interval = d
	f.mu.Unlock()
}

// Interval returns the configured cadence.
func (f *Feed) Interval() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval
}

func (f *Feed) Subscribe(handler func(Sample)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.handlers[id] = handler

	if f.cancel == nil {
		f.startLocked()
	}
	return &feedSubscription{feed: f, id: id}
}

func (f *Feed) UnsubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers = make(map[uint64]func(Sample))
	f.stopLocked()
}

// Done is closed once the current stream has fully stopped. It returns nil
// when no stream has been started.
func (f *Feed) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *Feed) unsubscribe(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.handlers, id)
	if len(f.handlers) == 0 {
		f.stopLocked()
	}
}

func (f *Feed) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Sample, 64)
	done := make(chan struct{})
	interval := f.interval
	f.cancel = cancel
	f.done = done

	go func() {
		defer close(out)
		err := f.source.Stream(ctx, interval, out)
		if err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Warn("motion source stopped", zap.Error(err))
		}
	}()

	go func() {
		defer close(done)
		f.pump(ctx, out)
	}()

	f.logger.Debug("motion feed started", zap.Duration("interval", interval))
}

func (f *Feed) stopLocked() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	f.cancel = nil
	f.logger.Debug("motion feed stopped")
}

func (f *Feed) pump(ctx context.Context, samples <-chan Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			for _, handler := range f.snapshotHandlers() {
				handler(sample)
			}
		}
	}
}

func (f *Feed) snapshotHandlers() []func(Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()

	handlers := make([]func(Sample), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	return handlers
}

type feedSubscription struct {
	feed *Feed
	id   uint64
	once sync.Once
}

func (s *feedSubscription) Unsubscribe() {
	s.once.Do(func() { s.feed.unsubscribe(s.id) })
}

// Unavailable is the sensor of a host without motion hardware. It accepts
// subscriptions but never delivers a sample.
type Unavailable struct {
	logger *zap.Logger
}

// NewUnavailable creates the no-capability sensor variant.
func NewUnavailable(log *zap.Logger) *Unavailable {
	return &Unavailable{logger: logger.OrNop(log)}
}

func (u *Unavailable) Available() bool { return false }

func (u *Unavailable) SetInterval(time.Duration) {}

func (u *Unavailable) Subscribe(func(Sample)) Subscription {
	u.logger.Warn("motion sensor not available on this host, no samples will be delivered")
	return noopSubscription{}
}

func (u *Unavailable) UnsubscribeAll() {}
