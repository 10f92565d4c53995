package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned while the breaker is rejecting calls outright.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrHalfOpenLimit is returned when the half-open probe quota is exhausted.
	ErrHalfOpenLimit = errors.New("too many requests in half-open state")
)

// State is the breaker's position in the closed/open/half-open cycle.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values get sensible defaults from New.
type Settings struct {
	// MaxRequests caps concurrent probe calls while half-open.
	MaxRequests uint32
	// Interval is how often counts reset while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// ReadyToTrip decides, after each failure while closed, whether to open.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange observes transitions, for logging or metrics.
	OnStateChange func(name string, from State, to State)
}

// Counts is a snapshot of call statistics for the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker sheds calls to an upstream that keeps failing. Each state change
// starts a new generation; results from calls that began in an older
// generation are discarded so a slow in-flight call cannot corrupt the
// counts of the state that replaced it.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	deadline time.Time
}

// New creates a breaker. Defaults: one half-open probe, 60s count window,
// 60s open period, trip after more than five consecutive failures.
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		deadline: time.Now().Add(settings.Interval),
	}
}

func (b *Breaker) Name() string { return b.name }

// State reports the current state, applying any pending time-based
// transition first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.refresh(time.Now())
	return state
}

// Counts returns a snapshot of the current generation's statistics.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs call if the breaker admits it, and feeds the outcome back
// into the state machine. A panic in call counts as a failure and is
// re-raised.
func (b *Breaker) Execute(call func() (interface{}, error)) (interface{}, error) {
	gen, err := b.admit()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			b.settle(gen, false)
			panic(r)
		}
	}()

	result, err := call()
	b.settle(gen, err == nil)
	return result, err
}

// admit decides whether a call may proceed and records it against the
// current generation.
func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, gen := b.refresh(time.Now())

	switch {
	case state == StateOpen:
		return gen, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return gen, ErrHalfOpenLimit
	}

	b.counts.Requests++
	return gen, nil
}

// settle records a call outcome. Outcomes from a superseded generation are
// dropped.
func (b *Breaker) settle(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.refresh(now)
	if current != gen {
		return
	}

	if !success {
		switch state {
		case StateClosed:
			b.counts.TotalFailures++
			b.counts.ConsecutiveFailures++
			b.counts.ConsecutiveSuccesses = 0
			if b.settings.ReadyToTrip(b.counts) {
				b.transition(StateOpen, now)
			}
		case StateHalfOpen:
			// A failed probe sends the breaker straight back to open.
			b.transition(StateOpen, now)
		}
		return
	}

	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0
	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
		b.transition(StateClosed, now)
	}
}

// refresh applies time-based transitions and returns the effective state
// plus the generation token. Callers must hold b.mu.
func (b *Breaker) refresh(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.deadline.IsZero() && b.deadline.Before(now) {
			b.counts = Counts{}
			b.deadline = now.Add(b.settings.Interval)
		}
	case StateOpen:
		if b.deadline.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, uint64(b.deadline.UnixNano())
}

// transition moves to a new state, resets counts, and arms the next
// deadline. Callers must hold b.mu.
func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.deadline = now.Add(b.settings.Interval)
	case StateOpen:
		b.deadline = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.deadline = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
