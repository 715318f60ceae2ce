package core

import (
	"time"

	"github.com/StudioSol/set"
)

// SeenEntry is an identifier surfaced by discovery and the time it was recorded
type SeenEntry struct {
	ID     string
	SeenAt time.Time
}

// SeenSet keeps the identifiers already announced by discovery in insertion order
type SeenSet struct {
	order  *set.LinkedHashSetString
	seenAt map[string]time.Time
}

func NewSeenSet() *SeenSet {
	return &SeenSet{
		order:  set.NewLinkedHashSetString(),
		seenAt: make(map[string]time.Time),
	}
}

// Contains reports whether id was already recorded
func (s *SeenSet) Contains(id string) bool {
	_, ok := s.seenAt[id]
	return ok
}

// Add records id, it reports false when id was already present
func (s *SeenSet) Add(id string, at time.Time) bool {
	if s.Contains(id) {
		return false
	}
	s.order.Add(id)
	s.seenAt[id] = at
	return true
}

func (s *SeenSet) Remove(id string) {
	if !s.Contains(id) {
		return
	}
	s.order.Remove(id)
	delete(s.seenAt, id)
}

func (s *SeenSet) Len() int {
	return len(s.seenAt)
}

// Entries returns the recorded entries, oldest first
func (s *SeenSet) Entries() []SeenEntry {
	entries := make([]SeenEntry, 0, len(s.seenAt))
	for id := range s.order.Iter() {
		entries = append(entries, SeenEntry{ID: id, SeenAt: s.seenAt[id]})
	}
	return entries
}

// IDs returns the recorded identifiers, oldest first
func (s *SeenSet) IDs() []string {
	ids := make([]string, 0, len(s.seenAt))
	for _, entry := range s.Entries() {
		ids = append(ids, entry.ID)
	}
	return ids
}

// Prune drops entries older than retention and then the oldest entries until at
// most maxEntries remain. Zero values disable the matching rule.
// It returns the number of evicted entries.
func (s *SeenSet) Prune(maxEntries int, retention time.Duration, now time.Time) int {
	var evicted []string

	entries := s.Entries()
	if retention > 0 {
		cutoff := now.Add(-retention)
		kept := entries[:0]
		for _, entry := range entries {
			if entry.SeenAt.Before(cutoff) {
				evicted = append(evicted, entry.ID)
				continue
			}
			kept = append(kept, entry)
		}
		entries = kept
	}

	if maxEntries > 0 && len(entries) > maxEntries {
		for _, entry := range entries[:len(entries)-maxEntries] {
			evicted = append(evicted, entry.ID)
		}
	}

	for _, id := range evicted {
		s.Remove(id)
	}
	return len(evicted)
}

func (s *SeenSet) Clone() *SeenSet {
	clone := NewSeenSet()
	for _, entry := range s.Entries() {
		clone.Add(entry.ID, entry.SeenAt)
	}
	return clone
}
