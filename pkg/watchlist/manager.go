// Package watchlist manages the pairs each subscriber follows
package watchlist

import (
	"errors"
	"strings"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/storage"
)

// ErrEmptyID is returned when a pair address is blank
var ErrEmptyID = errors.New("empty pair address")

type AddStatus int

const (
	Added AddStatus = iota
	AlreadyPresent
)

func (s AddStatus) String() string {
	if s == AlreadyPresent {
		return "already_present"
	}
	return "added"
}

type RemoveStatus int

const (
	Removed RemoveStatus = iota
	NotFound
)

func (s RemoveStatus) String() string {
	if s == NotFound {
		return "not_found"
	}
	return "removed"
}

// Store is the serialized state access the manager needs, see storage.Keeper
type Store interface {
	Snapshot() (*core.State, error)
	Update(fn func(state *core.State) error) error
}

// Manager is the only writer of watch lists
type Manager struct {
	store Store
	log   logger.Logger
}

func NewManager(store Store, log logger.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// Add puts id on the subscriber list. Adding an existing id is not an error.
func (m *Manager) Add(subscriber, id string) (AddStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Added, ErrEmptyID
	}

	status := Added
	err := m.store.Update(func(state *core.State) error {
		if !state.WatchLists.Add(subscriber, id) {
			status = AlreadyPresent
			return storage.ErrUnchanged
		}
		return nil
	})
	if err != nil {
		return status, err
	}

	m.log.WithFields(map[string]any{
		"subscriber": subscriber,
		"pair":       id,
		"status":     status.String(),
	}).Info("favorite added")

	return status, nil
}

// Remove drops id from the subscriber list
func (m *Manager) Remove(subscriber, id string) (RemoveStatus, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NotFound, ErrEmptyID
	}

	status := Removed
	err := m.store.Update(func(state *core.State) error {
		if !state.WatchLists.Remove(subscriber, id) {
			status = NotFound
			return storage.ErrUnchanged
		}
		return nil
	})
	if err != nil {
		return status, err
	}

	m.log.WithFields(map[string]any{
		"subscriber": subscriber,
		"pair":       id,
		"status":     status.String(),
	}).Info("favorite removed")

	return status, nil
}

// List returns the subscriber list, empty when the subscriber follows nothing
func (m *Manager) List(subscriber string) ([]string, error) {
	state, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return state.WatchLists.List(subscriber), nil
}

// AllEntries returns a snapshot of every watch list
func (m *Manager) AllEntries() (core.WatchLists, error) {
	state, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}
	return state.WatchLists, nil
}
