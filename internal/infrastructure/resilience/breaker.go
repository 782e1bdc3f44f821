package resilience

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrOriginOpen is returned while an origin's breaker rejects requests
var ErrOriginOpen = errors.New("origin is failing fast")

// OpenError reports a request refused because its origin is open
type OpenError struct {
	Origin     string
	RetryAfter time.Duration // zero while a trial request is in flight
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("origin %s unavailable, retry in %s", e.Origin, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("origin %s unavailable, trial request in flight", e.Origin)
}

func (e *OpenError) Unwrap() error { return ErrOriginOpen }

// State is an origin's breaker state
type State int

const (
	StateClosed  State = iota // requests flow
	StateOpen                 // requests fail fast until the cooldown ends
	StateTrial                // one request decides whether the origin recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateTrial:
		return "trial"
	default:
		return "unknown"
	}
}

// Policy decides when an origin opens and how it recovers
type Policy struct {
	// Failures is the number of consecutive origin failures that open it.
	// Zero disables the breakers.
	Failures uint32
	// Cooldown is how long an open origin rejects requests before one trial
	// is let through. Defaults to 30s.
	Cooldown time.Duration
	// Counts reports whether err is the origin's fault. Errors it rejects
	// (bad input, canceled callers) neither count nor reset the streak.
	// Defaults to err != nil.
	Counts func(err error) bool
	// OnChange observes state transitions
	OnChange func(origin string, from, to State)
}

type origin struct {
	state    State
	failures uint32
	until    time.Time
}

// Breakers tracks one breaker per origin, so a module hammering a dead host
// fails fast without affecting requests to any other origin
type Breakers struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	origins map[string]*origin
}

// NewBreakers creates an empty set of origin breakers
func NewBreakers(policy Policy) *Breakers {
	if policy.Cooldown <= 0 {
		policy.Cooldown = 30 * time.Second
	}
	if policy.Counts == nil {
		policy.Counts = func(err error) bool { return err != nil }
	}
	return &Breakers{
		policy:  policy,
		now:     time.Now,
		origins: make(map[string]*origin),
	}
}

// Guard runs fn for key unless the origin is open. fn's error is returned
// unchanged; a refusal is an *OpenError.
func (b *Breakers) Guard(key string, fn func() error) error {
	if b.policy.Failures == 0 {
		return fn()
	}
	if err := b.admit(key); err != nil {
		return err
	}

	completed := false
	defer func() {
		if !completed {
			b.record(key, true)
		}
	}()

	err := fn()
	completed = true
	if err == nil {
		b.record(key, false)
	} else if b.policy.Counts(err) {
		b.record(key, true)
	} else {
		b.release(key)
	}
	return err
}

// State returns key's current state
func (b *Breakers) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.origins[key]; ok {
		return o.state
	}
	return StateClosed
}

// Open lists the origins currently rejecting requests, sorted
func (b *Breakers) Open() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var open []string
	for key, o := range b.origins {
		if o.state != StateClosed {
			open = append(open, key)
		}
	}
	sort.Strings(open)
	return open
}

func (b *Breakers) admit(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.origins[key]
	if !ok {
		return nil
	}

	switch o.state {
	case StateOpen:
		now := b.now()
		if now.Before(o.until) {
			return &OpenError{Origin: key, RetryAfter: o.until.Sub(now)}
		}
		b.transition(key, o, StateTrial)
		return nil
	case StateTrial:
		return &OpenError{Origin: key}
	default:
		return nil
	}
}

func (b *Breakers) record(key string, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.origins[key]
	if !ok {
		if !failed {
			return
		}
		o = &origin{}
		b.origins[key] = o
	}

	if !failed {
		switch o.state {
		case StateTrial:
			b.transition(key, o, StateClosed)
			delete(b.origins, key)
		case StateClosed:
			// Healthy origins are forgotten so the map only holds troubled ones
			delete(b.origins, key)
		}
		return
	}

	switch o.state {
	case StateClosed:
		o.failures++
		if o.failures >= b.policy.Failures {
			b.open(key, o)
		}
	case StateTrial:
		b.open(key, o)
	}
}

// release ends a trial whose outcome said nothing about the origin
func (b *Breakers) release(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o, ok := b.origins[key]; ok && o.state == StateTrial {
		o.until = b.now()
		b.transition(key, o, StateOpen)
	}
}

func (b *Breakers) open(key string, o *origin) {
	o.until = b.now().Add(b.policy.Cooldown)
	b.transition(key, o, StateOpen)
}

func (b *Breakers) transition(key string, o *origin, to State) {
	from := o.state
	o.state = to
	if to != StateClosed {
		o.failures = 0
	}
	if from != to && b.policy.OnChange != nil {
		b.policy.OnChange(key, from, to)
	}
}
