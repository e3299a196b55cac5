package force

import (
	"sync"
	"time"
)

// watchdog fires tick at a fixed interval while armed. At most one timer is
// alive at a time: arming always cancels the previous timer first.
type watchdog struct {
	interval time.Duration
	tick     func()

	mu   sync.Mutex
	stop chan struct{}
}

func newWatchdog(interval time.Duration, tick func()) *watchdog {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	return &watchdog{interval: interval, tick: tick}
}

// arm starts the timer, replacing any prior one.
func (w *watchdog) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	stop := make(chan struct{})
	w.stop = stop
	go w.loop(stop)
}

// disarm cancels the timer. Signal-only: it does not wait for an in-flight
// tick, which may still be blocked on the session lock the caller holds.
func (w *watchdog) disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *watchdog) armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}

func (w *watchdog) stopLocked() {
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}

func (w *watchdog) loop(stop chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			w.tick()
		}
	}
}
