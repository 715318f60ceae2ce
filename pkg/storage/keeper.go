package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
)

// ErrUnchanged can be returned by an Update function to skip the save
var ErrUnchanged = errors.New("state unchanged")

// Keeper serializes every load-modify-save cycle over a StateStorage, so
// concurrent writers never lose each other's changes
type Keeper struct {
	mu      sync.Mutex
	storage core.StateStorage
	seen    core.SeenSettings
	now     func() time.Time
}

type KeeperOption func(*Keeper)

// WithSeenBounds applies the seen-set bounds before every save
func WithSeenBounds(settings core.SeenSettings) KeeperOption {
	return func(k *Keeper) {
		k.seen = settings
	}
}

// WithClock overrides the clock used for seen-set retention
func WithClock(now func() time.Time) KeeperOption {
	return func(k *Keeper) {
		k.now = now
	}
}

func NewKeeper(storage core.StateStorage, options ...KeeperOption) *Keeper {
	keeper := &Keeper{
		storage: storage,
		now:     time.Now,
	}
	for _, option := range options {
		option(keeper)
	}
	return keeper
}

// Snapshot returns a private copy of the current state
func (k *Keeper) Snapshot() (*core.State, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.storage.Load()
}

// Update loads the state, applies fn and saves the result while holding the lock.
// Errors from fn abort the update, except ErrUnchanged which skips the save.
func (k *Keeper) Update(fn func(state *core.State) error) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	state, err := k.storage.Load()
	if err != nil {
		return err
	}

	if err := fn(state); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return nil
		}
		return err
	}

	state.Seen.Prune(k.seen.MaxEntries, k.seen.Retention, k.now())
	return k.storage.Save(state)
}

// Close releases the underlying storage
func (k *Keeper) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.storage.Close()
}
