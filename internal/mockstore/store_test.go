package mockstore

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func TestSetState_ShallowMerge(t *testing.T) {
	store := New(State{"a": 1})

	store.SetState(State{"b": 2})
	state := store.GetState()
	if state["a"] != 1 || state["b"] != 2 {
		t.Fatalf("merge mismatch: %v", state)
	}

	store.Update(func(prev State) State {
		return State{"a": prev["a"].(int) + 1}
	})
	state = store.GetState()
	if state["a"] != 2 || state["b"] != 2 {
		t.Fatalf("function-form merge mismatch: %v", state)
	}
}

func TestNew_CopiesInitialState(t *testing.T) {
	initial := State{"a": 1}
	store := New(initial)

	initial["a"] = 99
	initial["rogue"] = true

	state := store.GetState()
	if state["a"] != 1 {
		t.Errorf("caller mutation leaked into store: %v", state)
	}
	if _, ok := state["rogue"]; ok {
		t.Errorf("caller mutation leaked into store: %v", state)
	}
}

func TestListeners_InvokedInSubscriptionOrderExactlyOnce(t *testing.T) {
	store := New(State{})
	var calls []string

	store.Subscribe(func(State) { calls = append(calls, "L1") })
	store.Subscribe(func(State) { calls = append(calls, "L2") })

	store.SetState(State{"x": 1})

	if len(calls) != 2 || calls[0] != "L1" || calls[1] != "L2" {
		t.Fatalf("notification order mismatch: %v", calls)
	}
}

func TestListeners_ReceivePostMergeState(t *testing.T) {
	store := New(State{"a": 1})
	var seen State

	store.Subscribe(func(s State) { seen = s })
	store.SetState(State{"b": 2})

	if seen["a"] != 1 || seen["b"] != 2 {
		t.Fatalf("listener saw pre-merge state: %v", seen)
	}
}

func TestUnsubscribe_RemovesExactlyOneAndIsIdempotent(t *testing.T) {
	store := New(State{})
	var calls []string

	unsub1 := store.Subscribe(func(State) { calls = append(calls, "L1") })
	store.Subscribe(func(State) { calls = append(calls, "L2") })

	unsub1()
	store.SetState(State{"x": 1})
	if len(calls) != 1 || calls[0] != "L2" {
		t.Fatalf("post-unsubscribe calls mismatch: %v", calls)
	}

	// Stale unsubscribe: no error, no double removal.
	unsub1()
	unsub1()
	store.SetState(State{"x": 2})
	if len(calls) != 2 || calls[1] != "L2" {
		t.Fatalf("stale unsubscribe affected later updates: %v", calls)
	}
}

func TestReentrantSetState_CompletesBeforeOuterCallReturns(t *testing.T) {
	store := New(State{"n": 0})
	var notified []int

	store.Subscribe(func(s State) {
		n := s["n"].(int)
		notified = append(notified, n)
		if n == 1 {
			// A listener reacting to the first update by issuing another.
			store.SetState(State{"n": 2})
		}
	})

	store.SetState(State{"n": 1})

	// The re-entrant update queues after the current pass and is fully
	// processed before the original SetState returns.
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Fatalf("re-entrant notification sequence mismatch: %v", notified)
	}
	if store.GetState()["n"] != 2 {
		t.Fatalf("final state mismatch: %v", store.GetState())
	}
}

func TestReentrantUpdate_SeesPredecessorsState(t *testing.T) {
	store := New(State{"n": 0})

	store.Subscribe(func(s State) {
		if s["n"].(int) == 1 {
			store.Update(func(prev State) State {
				// prev must reflect the first update, not the initial state.
				return State{"n": prev["n"].(int) + 10}
			})
		}
	})

	store.SetState(State{"n": 1})

	if got := store.GetState()["n"]; got != 11 {
		t.Fatalf("queued function-form update saw wrong prev: n=%v", got)
	}
}

func TestSnapshotsAreStableAcrossUpdates(t *testing.T) {
	store := New(State{"a": 1})
	before := store.GetState()

	store.SetState(State{"a": 2})

	if before["a"] != 1 {
		t.Errorf("earlier snapshot mutated by later update: %v", before)
	}
	if store.GetState()["a"] != 2 {
		t.Errorf("current state wrong: %v", store.GetState())
	}
}

func testMergeProperties(t *rapid.T) {
	keys := []string{"a", "b", "c", "d"}
	stateGen := rapid.MapOfN(rapid.SampledFrom(keys), rapid.IntRange(-100, 100), 0, len(keys))

	initial := stateGen.Draw(t, "initial")
	store := New(toState(initial))

	fired := 0
	store.Subscribe(func(State) { fired++ })

	updates := rapid.SliceOfN(stateGen, 1, 5).Draw(t, "updates")
	for _, u := range updates {
		store.SetState(toState(u))
	}

	if fired != len(updates) {
		t.Fatalf("listener fired %d times for %d updates", fired, len(updates))
	}

	// Last-write-wins per key, untouched keys survive.
	want := map[string]int{}
	for k, v := range initial {
		want[k] = v
	}
	for _, u := range updates {
		for k, v := range u {
			want[k] = v
		}
	}
	got := store.GetState()
	if len(got) != len(want) {
		t.Fatalf("state size mismatch: got=%v want=%v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("state[%q]=%v want %v", k, got[k], v)
		}
	}
}

func TestMergeProperties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testMergeProperties)
}

func toState(m map[string]int) State {
	s := make(State, len(m))
	for k, v := range m {
		s[k] = v
	}
	return s
}

func TestProvider_InstallOverwritesOnlyNamedSlots(t *testing.T) {
	p := NewProvider()
	users := New(State{"count": 1})
	settings := New(State{"theme": "light"})
	p.Install(map[string]*Store{
		"users":    users,
		"settings": settings,
	})

	replacement := New(State{"count": 2})
	p.Install(map[string]*Store{"users": replacement})

	got, ok := p.Get("users")
	if !ok || got != replacement {
		t.Error("users slot was not overwritten")
	}
	gotSettings, ok := p.Get("settings")
	if !ok || gotSettings != settings {
		t.Error("settings slot must be untouched")
	}
	if _, ok := p.Get("billing"); ok {
		t.Error("lookup of uninstalled store must miss")
	}

	names := p.Names()
	if fmt.Sprint(names) != "[settings users]" {
		t.Errorf("Names mismatch: %v", names)
	}
}
