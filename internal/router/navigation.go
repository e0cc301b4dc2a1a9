package router

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// LocationPrefix is the routing prefix marker carried by locations.
const LocationPrefix = "#"

// ErrSubscriptionClosed is returned by Next after Close.
var ErrSubscriptionClosed = errors.New("subscription closed")

// ParseLocation strips the routing prefix marker. An empty location is "/".
func ParseLocation(location string) string {
	p := strings.TrimPrefix(location, LocationPrefix)
	if p == "" {
		return "/"
	}
	return p
}

// Location returns the fully-qualified target for path.
func Location(path string) string {
	if strings.HasPrefix(path, LocationPrefix) {
		return path
	}
	return LocationPrefix + path
}

// Event is one navigation, carrying the location current when it fired and
// the state version that Set produced.
type Event struct {
	Location string
	Version  uint64
}

// Path returns the event's location without the prefix marker.
func (e Event) Path() string {
	return ParseLocation(e.Location)
}

// NavigationState holds the single addressable location and notifies
// subscribers when it changes. Setting the location to its current value is a
// no-op and fires no event.
type NavigationState struct {
	mu      sync.Mutex
	current string
	version uint64
	nextID  int
	subs    map[int]*Subscription
}

// NewNavigationState creates a state positioned at initial.
func NewNavigationState(initial string) *NavigationState {
	return &NavigationState{
		current: initial,
		subs:    make(map[int]*Subscription),
	}
}

// Current returns the current location.
func (n *NavigationState) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Version counts the location changes made so far.
func (n *NavigationState) Version() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

// Set moves to location and queues an event for every subscriber.
// POST: returns false, and queues nothing, when location is already current
func (n *NavigationState) Set(location string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setLocked(location)
}

// SetIfVersion is Set, applied only while the state is still at version.
// POST: stale is true, and nothing changed, when another Set came first
func (n *NavigationState) SetIfVersion(location string, version uint64) (moved, stale bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.version != version {
		return false, true
	}
	return n.setLocked(location), false
}

func (n *NavigationState) setLocked(location string) bool {
	if n.current == location {
		return false
	}
	n.current = location
	n.version++
	ev := Event{Location: location, Version: n.version}
	for _, s := range n.subs {
		s.push(ev)
	}
	return true
}

// Subscribe registers a new observer. Events set after this call are queued
// in order until read with Next.
func (n *NavigationState) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	s := &Subscription{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.unsubscribe = func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
	n.subs[id] = s
	return s
}

// Subscription is an unbounded, ordered queue of navigation events.
type Subscription struct {
	mu          sync.Mutex
	pending     []Event
	ready       chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next blocks until an event is queued, ctx ends, or the subscription closes.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return ev, nil
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-s.done:
			return Event{}, ErrSubscriptionClosed
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Pending returns the number of queued events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		close(s.done)
	})
}
