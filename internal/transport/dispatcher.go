package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
)

// DefaultAlertTimeout bounds how long an alert frame waits for a full
// subscriber buffer.
const DefaultAlertTimeout = 5 * time.Second

// Dispatcher copies frames from one source to multiple subscribers.
// State and motion frames are dropped when a subscriber's buffer is full,
// since the next state frame supersedes them. Alert frames wait up to the
// alert timeout for room instead. Dropped frames are logged and counted.
type Dispatcher struct {
	source       <-chan models.Frame
	subscribers  []chan models.Frame
	bufferSize   int
	alertTimeout time.Duration
	logger       *zap.Logger
	mu           sync.Mutex
	droppedTotal int64 // atomic counter for total dropped frames
}

func NewDispatcher(source <-chan models.Frame, bufferSize int, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		source:       source,
		subscribers:  make([]chan models.Frame, 0),
		bufferSize:   bufferSize,
		alertTimeout: DefaultAlertTimeout,
		logger:       logger.OrNop(log),
	}
}

// SetAlertTimeout changes how long an alert frame may wait for a
// subscriber. Call it before Run.
func (d *Dispatcher) SetAlertTimeout(timeout time.Duration) {
	d.alertTimeout = timeout
}

// Subscribe returns a channel that receives copies of all source frames.
// Subscribers should be added before calling Run() to ensure they receive all frames.
func (d *Dispatcher) Subscribe() <-chan models.Frame {
	ch := make(chan models.Frame, d.bufferSize)
	d.mu.Lock()
	d.subscribers = append(d.subscribers, ch)
	d.mu.Unlock()
	return ch
}

// GetSubscriberCount returns the current number of active subscribers.
func (d *Dispatcher) GetSubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

// GetDroppedCount returns the total number of frames that were dropped
// due to subscriber buffers being full.
func (d *Dispatcher) GetDroppedCount() int64 {
	return atomic.LoadInt64(&d.droppedTotal)
}

// Run blocks until ctx is cancelled or source closes
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-d.source:
			if !ok {
				return
			}
			d.dispatch(ctx, frame)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, frame models.Frame) {
	d.mu.Lock()
	subs := d.subscribers
	d.mu.Unlock()

	dropped := 0
	for _, sub := range subs {
		if frame.Type == models.FrameAlert {
			delivered, err := d.deliverAlert(ctx, sub, frame)
			if err != nil {
				return
			}
			if !delivered {
				dropped++
				atomic.AddInt64(&d.droppedTotal, 1)
			}
			continue
		}

		select {
		case sub <- frame:
		case <-ctx.Done():
			return
		default:
			dropped++
			atomic.AddInt64(&d.droppedTotal, 1)
		}
	}

	if dropped > 0 {
		level := d.logger.Warn
		if frame.Type == models.FrameAlert {
			level = d.logger.Error
		}
		level("dispatcher dropped frame, subscriber buffer full",
			zap.String("type", frame.Type),
			zap.Int("subscribers", dropped))
	}
}

// deliverAlert waits for room in sub until the alert timeout elapses
func (d *Dispatcher) deliverAlert(ctx context.Context, sub chan models.Frame, frame models.Frame) (bool, error) {
	select {
	case sub <- frame:
		return true, nil
	default:
	}

	timer := time.NewTimer(d.alertTimeout)
	defer timer.Stop()

	select {
	case sub <- frame:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (d *Dispatcher) closeSubscribers() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sub := range d.subscribers {
		close(sub)
	}
}
