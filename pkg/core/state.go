package core

import (
	"slices"
	"sort"
)

// WatchLists maps a subscriber to the pair addresses it follows.
// A subscriber never holds the same address twice.
type WatchLists map[string][]string

// State is everything the relay persists
type State struct {
	WatchLists WatchLists
	Seen       *SeenSet
}

// NewState returns the empty first-run state
func NewState() *State {
	return &State{
		WatchLists: make(WatchLists),
		Seen:       NewSeenSet(),
	}
}

// Clone returns a deep copy of the state
func (s *State) Clone() *State {
	return &State{
		WatchLists: s.WatchLists.Clone(),
		Seen:       s.Seen.Clone(),
	}
}

// Add appends id to the subscriber list, it reports false when already present
func (w WatchLists) Add(subscriber, id string) bool {
	if slices.Contains(w[subscriber], id) {
		return false
	}
	w[subscriber] = append(w[subscriber], id)
	return true
}

// Remove deletes id from the subscriber list, it reports false when absent
func (w WatchLists) Remove(subscriber, id string) bool {
	list := w[subscriber]
	idx := slices.Index(list, id)
	if idx < 0 {
		return false
	}

	list = slices.Delete(slices.Clone(list), idx, idx+1)
	if len(list) == 0 {
		delete(w, subscriber)
		return true
	}
	w[subscriber] = list
	return true
}

// List returns a copy of the subscriber list, never nil
func (w WatchLists) List(subscriber string) []string {
	list := w[subscriber]
	if len(list) == 0 {
		return []string{}
	}
	return slices.Clone(list)
}

// Subscribers returns the subscribers with at least one entry, sorted
func (w WatchLists) Subscribers() []string {
	subscribers := make([]string, 0, len(w))
	for subscriber, list := range w {
		if len(list) > 0 {
			subscribers = append(subscribers, subscriber)
		}
	}
	sort.Strings(subscribers)
	return subscribers
}

func (w WatchLists) Clone() WatchLists {
	clone := make(WatchLists, len(w))
	for subscriber, list := range w {
		clone[subscriber] = slices.Clone(list)
	}
	return clone
}
