// Package mockstore is a minimal observable state container used to stand in
// for production state stores in component tests. Tests inject deterministic
// state; components under test read and subscribe as they would against the
// real store.
package mockstore

import "slices"

// State is a store snapshot: an arbitrary mapping of keys to values.
type State map[string]any

// Listener observes state changes. It receives the post-merge state.
type Listener func(State)

type subscriber struct {
	id int
	fn Listener
}

// Store is an in-memory publish/subscribe state container. It is not safe
// for concurrent use; one store belongs to one test.
type Store struct {
	state  State
	subs   []subscriber
	nextID int

	// queue holds updates issued while a notification pass is running.
	// Re-entrant SetState/Update calls land here and are processed to
	// completion, in FIFO order, before the outermost call returns.
	queue    []func(State) State
	draining bool
}

// New creates a store holding a private copy of initial; later mutation of
// the caller's map does not leak in.
func New(initial State) *Store {
	state := make(State, len(initial))
	for k, v := range initial {
		state[k] = v
	}
	return &Store{state: state}
}

// GetState returns the live internal state reference, not a defensive copy.
// Mutating it directly bypasses listener notification and the merge
// invariant; use SetState. Snapshots stay stable across updates because
// every merge builds a fresh map.
func (s *Store) GetState() State {
	return s.state
}

// SetState shallow-merges partial into the current state, then invokes every
// subscribed listener with the new state, in subscription order.
func (s *Store) SetState(partial State) {
	s.dispatch(func(State) State { return partial })
}

// Update is the function form of SetState: fn receives the pre-update state
// and returns the partial to merge.
func (s *Store) Update(fn func(prev State) State) {
	s.dispatch(fn)
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing removes exactly one listener; calling the returned function
// again is a no-op.
func (s *Store) Subscribe(fn Listener) func() {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = slices.Delete(s.subs, i, i+1)
				return
			}
		}
	}
}

func (s *Store) dispatch(fn func(State) State) {
	s.queue = append(s.queue, fn)
	if s.draining {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]

		partial := next(s.state)
		merged := make(State, len(s.state)+len(partial))
		for k, v := range s.state {
			merged[k] = v
		}
		for k, v := range partial {
			merged[k] = v
		}
		s.state = merged

		// Snapshot so listeners subscribing mid-pass do not receive this
		// update, and unsubscribes mid-pass do not shift the iteration.
		for _, sub := range slices.Clone(s.subs) {
			sub.fn(merged)
		}
	}
}
