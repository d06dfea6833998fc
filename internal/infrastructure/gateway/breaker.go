package gateway

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// StateChange describes a transition performed by a Record call.
type StateChange struct {
	From State
	To   State
}

func (c StateChange) Changed() bool { return c.From != c.To }

// Breaker is a count-based rolling-window circuit breaker. It opens when the
// failure ratio over the last WindowSize calls exceeds the threshold (once at
// least MinimumCalls have been observed), rejects calls for the cooldown, then
// lets a single probe through. The probe's result decides between closing and
// reopening.
type Breaker struct {
	mu sync.Mutex

	name         string
	threshold    float64
	minimumCalls int
	cooldown     time.Duration
	now          func() time.Time
	onChange     func(name string, change StateChange)

	window   []bool // true marks a failure
	next     int
	count    int
	failures int

	state     State
	openUntil time.Time
	probing   bool
}

type BreakerOption func(*Breaker)

func WithFailureRateThreshold(ratio float64) BreakerOption {
	return func(b *Breaker) { b.threshold = ratio }
}

func WithWindowSize(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.window = make([]bool, n)
		}
	}
}

func WithMinimumCalls(n int) BreakerOption {
	return func(b *Breaker) { b.minimumCalls = n }
}

func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) { b.cooldown = d }
}

func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithStateChangeHook registers fn to be called, outside the lock, on every transition.
func WithStateChangeHook(fn func(name string, change StateChange)) BreakerOption {
	return func(b *Breaker) { b.onChange = fn }
}

func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:         name,
		threshold:    0.5,
		minimumCalls: 10,
		cooldown:     30 * time.Second,
		now:          time.Now,
		window:       make([]bool, 20),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.minimumCalls > len(b.window) {
		b.minimumCalls = len(b.window)
	}
	if b.minimumCalls < 1 {
		b.minimumCalls = 1
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed. In the half-open state only one
// caller at a time is admitted; it must report back via RecordSuccess,
// RecordFailure or Release.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	change := StateChange{From: b.state, To: b.state}
	allowed := b.allowLocked()
	change.To = b.state
	b.mu.Unlock()

	b.notify(change)
	return allowed
}

func (b *Breaker) allowLocked() bool {
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Before(b.openUntil) {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

func (b *Breaker) RecordSuccess() StateChange {
	return b.record(false)
}

func (b *Breaker) RecordFailure() StateChange {
	return b.record(true)
}

// Release frees a half-open probe slot without counting the call, e.g. when
// the caller gave up before the partner answered.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) record(failed bool) StateChange {
	b.mu.Lock()
	change := StateChange{From: b.state}

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		if failed {
			b.trip()
		} else {
			b.state = StateClosed
			b.resetWindow()
		}
	case StateClosed:
		b.push(failed)
		if b.count >= b.minimumCalls && b.failureRate() > b.threshold {
			b.trip()
		}
	case StateOpen:
		// Calls admitted before the circuit opened finish late; they do not move it.
	}

	change.To = b.state
	b.mu.Unlock()

	b.notify(change)
	return change
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openUntil = b.now().Add(b.cooldown)
	b.resetWindow()
}

func (b *Breaker) push(failed bool) {
	if b.count == len(b.window) {
		if b.window[b.next] {
			b.failures--
		}
	} else {
		b.count++
	}
	b.window[b.next] = failed
	if failed {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.window)
}

func (b *Breaker) resetWindow() {
	clear(b.window)
	b.next = 0
	b.count = 0
	b.failures = 0
}

func (b *Breaker) failureRate() float64 {
	if b.count == 0 {
		return 0
	}
	return float64(b.failures) / float64(b.count)
}

func (b *Breaker) notify(change StateChange) {
	if b.onChange != nil && change.Changed() {
		b.onChange(b.name, change)
	}
}
