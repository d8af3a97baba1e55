package detector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/motion"
)

// manualClock fires registered timers only when Advance is called.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	every time.Duration
	due   time.Time
	fn    func()
}

func newManualClock() *manualClock {
	return &manualClock{
		now:    time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC),
		timers: make(map[int]*manualTimer),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Every(d time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.timers[id] = &manualTimer{every: d, due: c.now.Add(d), fn: fn}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.timers, id)
	}
}

// Active returns the number of live timers.
func (c *manualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward one step at a time, firing due timers outside
// the clock lock.
func (c *manualClock) Advance(d time.Duration) {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		c.mu.Lock()
		c.now = c.now.Add(step)
		var due []func()
		for _, t := range c.timers {
			if !c.now.Before(t.due) {
				t.due = t.due.Add(t.every)
				due = append(due, t.fn)
			}
		}
		c.mu.Unlock()

		for _, fn := range due {
			fn()
		}
	}
}

// fakeSensor lets tests inject samples synchronously.
type fakeSensor struct {
	mu           sync.Mutex
	available    bool
	interval     time.Duration
	handlers     map[int]func(motion.Sample)
	nextID       int
	unsubscribes int
}

func newFakeSensor() *fakeSensor {
	return &fakeSensor{available: true, handlers: make(map[int]func(motion.Sample))}
}

func (s *fakeSensor) Available() bool { return s.available }

func (s *fakeSensor) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

func (s *fakeSensor) Subscribe(h func(motion.Sample)) motion.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return &fakeSubscription{}
	}
	s.nextID++
	id := s.nextID
	s.handlers[id] = h
	return &fakeSubscription{fn: func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}}
}

func (s *fakeSensor) UnsubscribeAll() {
	s.mu.Lock()
	s.handlers = make(map[int]func(motion.Sample))
	s.unsubscribes++
	s.mu.Unlock()
}

func (s *fakeSensor) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Emit delivers a sample to every subscriber on the calling goroutine.
func (s *fakeSensor) Emit(x, y, z float64) {
	s.mu.Lock()
	handlers := make([]func(motion.Sample), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(motion.Sample{X: x, Y: y, Z: z, At: time.Now()})
	}
}

type fakeSubscription struct {
	fn   func()
	once sync.Once
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// fakeLocator returns queued fixes in order; once the queue is empty it
// keeps returning the last configured result.
type fakeLocator struct {
	mu         sync.Mutex
	permission location.Permission
	permErr    error
	fixes      []fixResult
	calls      int
	block      chan struct{}
	// permEntered is closed when RequestPermission is called; the call
	// then waits for permRelease.
	permEntered chan struct{}
	permRelease chan struct{}
}

type fixResult struct {
	point location.Point
	err   error
}

var errNoFix = errors.New("no fix available")

func newFakeLocator(fixes ...fixResult) *fakeLocator {
	return &fakeLocator{permission: location.PermissionGranted, fixes: fixes}
}

func (l *fakeLocator) RequestPermission(ctx context.Context) (location.Permission, error) {
	l.mu.Lock()
	entered, release := l.permEntered, l.permRelease
	l.permEntered, l.permRelease = nil, nil
	l.mu.Unlock()

	if entered != nil {
		close(entered)
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.permission, l.permErr
}

func (l *fakeLocator) CurrentPosition(ctx context.Context) (location.Point, error) {
	l.mu.Lock()
	l.calls++
	block := l.block
	var res fixResult
	switch {
	case len(l.fixes) > 1:
		res = l.fixes[0]
		l.fixes = l.fixes[1:]
	case len(l.fixes) == 1:
		res = l.fixes[0]
	default:
		res = fixResult{err: errNoFix}
	}
	l.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return location.Point{}, ctx.Err()
		}
	}
	return res.point, res.err
}

func (l *fakeLocator) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// escalations records every escalation callback invocation.
type escalations struct {
	mu     sync.Mutex
	points []location.Point
}

func (e *escalations) record(p location.Point) {
	e.mu.Lock()
	e.points = append(e.points, p)
	e.mu.Unlock()
}

func (e *escalations) All() []location.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]location.Point(nil), e.points...)
}
