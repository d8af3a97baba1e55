package detector

import (
	"sync"
	"time"
)

// Clock supplies time and repeating timers to the monitor.
type Clock interface {
	Now() time.Time
	// Every calls fn every d until the returned stop function is called.
	Every(d time.Duration, fn func()) (stop func())
}

// SystemClock is the wall-clock implementation of Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				select {
				case <-quit:
					return
				default:
				}
				fn()
			}
		}
	}()

	return func() { once.Do(func() { close(quit) }) }
}
