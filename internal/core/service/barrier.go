package service

import (
	"sync"
	"time"
)

// loadBarrier joins the first delivery of n independent sources and races
// the join against a timer. Whichever finishes first releases the barrier;
// the other becomes a no-op.
type loadBarrier struct {
	mu       sync.Mutex
	arrived  []bool
	pending  int
	released bool
	timedOut bool
	timer    *time.Timer
	done     chan struct{}
}

// newLoadBarrier arms a barrier for n sources. onTimeout runs on the timer
// goroutine only when the timer is what released the barrier. A timeout <= 0
// disables the timer.
func newLoadBarrier(n int, timeout time.Duration, onTimeout func()) *loadBarrier {
	b := &loadBarrier{
		arrived: make([]bool, n),
		pending: n,
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if n == 0 {
		b.releaseLocked(false)
		return b
	}
	if timeout > 0 {
		b.timer = time.AfterFunc(timeout, func() {
			if b.expire() && onTimeout != nil {
				onTimeout()
			}
		})
	}
	return b
}

// arrive marks source i as delivered and reports whether this call released
// the barrier. Repeat arrivals from the same source are ignored.
func (b *loadBarrier) arrive(i int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released || i < 0 || i >= len(b.arrived) || b.arrived[i] {
		return false
	}
	b.arrived[i] = true
	b.pending--
	if b.pending == 0 {
		b.releaseLocked(false)
		return true
	}
	return false
}

// expire releases the barrier on timeout and reports whether it did so.
func (b *loadBarrier) expire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return false
	}
	b.releaseLocked(true)
	return true
}

func (b *loadBarrier) releaseLocked(timedOut bool) {
	b.released = true
	b.timedOut = timedOut
	if b.timer != nil {
		b.timer.Stop()
	}
	close(b.done)
}

// stop disarms the timer without releasing the barrier.
func (b *loadBarrier) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
}

// missing returns the indexes of sources that have not delivered yet.
func (b *loadBarrier) missing() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []int
	for i, ok := range b.arrived {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// Done is closed once the barrier is released.
func (b *loadBarrier) Done() <-chan struct{} { return b.done }

// TimedOut reports whether the timer released the barrier.
func (b *loadBarrier) TimedOut() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timedOut
}
