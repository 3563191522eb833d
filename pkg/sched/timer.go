package sched

import (
	"sort"
	"sync/atomic"
	"time"
)

// Timer is a pending callback scheduled with AfterFunc.
type Timer struct {
	t       *time.Timer
	stopped atomic.Bool
	fired   atomic.Bool
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Load() {
				return
			}
			t.fired.Store(true)
			fn()
		})
	})
	return t
}

// Stop cancels the timer. A callback already queued on the loop is
// skipped as long as Stop runs before it. Stop reports whether it
// prevented the callback.
func (t *Timer) Stop() bool {
	if t.fired.Load() {
		return false
	}
	t.t.Stop()
	return !t.stopped.Swap(true)
}

// Fired reports whether the callback ran.
func (t *Timer) Fired() bool { return t.fired.Load() }

// Debouncer coalesces bursts of calls per key into one callback that runs
// on the loop after the key has been quiet for the delay. Trigger, Cancel
// and Flush must be called from loop tasks.
type Debouncer[K comparable] struct {
	loop    *Loop
	delay   time.Duration
	pending map[K]*debounced
	seq     uint64
}

type debounced struct {
	timer *Timer
	fn    func()
	seq   uint64
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer[K comparable](l *Loop, delay time.Duration) *Debouncer[K] {
	return &Debouncer[K]{
		loop:    l,
		delay:   delay,
		pending: make(map[K]*debounced),
	}
}

// Trigger schedules fn for key, replacing any callback pending for it.
func (d *Debouncer[K]) Trigger(key K, fn func()) {
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.seq++
	p := &debounced{fn: fn, seq: d.seq}
	p.timer = d.loop.AfterFunc(d.delay, func() {
		if d.pending[key] == p {
			delete(d.pending, key)
		}
		fn()
	})
	d.pending[key] = p
}

// Cancel drops the callback pending for key.
func (d *Debouncer[K]) Cancel(key K) {
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Flush runs the callback pending for key now. It reports whether one was
// pending.
func (d *Debouncer[K]) Flush(key K) bool {
	p, ok := d.pending[key]
	if !ok {
		return false
	}
	delete(d.pending, key)
	if p.timer.Stop() {
		p.fn()
		return true
	}
	return false
}

// FlushAll runs every pending callback now, oldest trigger first.
func (d *Debouncer[K]) FlushAll() int {
	if len(d.pending) == 0 {
		return 0
	}
	keys := make([]K, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return d.pending[keys[i]].seq < d.pending[keys[j]].seq
	})
	n := 0
	for _, k := range keys {
		if d.Flush(k) {
			n++
		}
	}
	return n
}

// Pending returns the number of keys with a scheduled callback.
func (d *Debouncer[K]) Pending() int { return len(d.pending) }
