package storage

import (
	"errors"
	"fmt"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/tidwall/buntdb"
)

const keyPrefix = "doc:"

// BuntStorage implements core.StateStorage using BuntDB.
// Both documents are written in a single transaction.
type BuntStorage struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory storage
func FromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// FromFile creates a file-based storage
func FromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage creates a new BuntDB storage instance
func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, &core.StorageError{Op: "open", Err: fmt.Errorf("failed to open buntdb: %w", err)}
	}

	var config buntdb.Config
	if err := db.ReadConfig(&config); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "open", Err: err}
	}

	// a sent notification must not be followed by a lost seen-set write
	config.SyncPolicy = buntdb.Always
	if err := db.SetConfig(config); err != nil {
		db.Close()
		return nil, &core.StorageError{Op: "open", Err: err}
	}

	return &BuntStorage{db: db}, nil
}

// Load returns the persisted state, or an empty state on first run
func (b *BuntStorage) Load() (*core.State, error) {
	state := core.NewState()

	err := b.db.View(func(tx *buntdb.Tx) error {
		content, err := get(tx, watchListsDocument)
		if err != nil {
			return err
		}
		if content != "" {
			if state.WatchLists, err = decodeWatchLists(content); err != nil {
				return err
			}
		}

		content, err = get(tx, seenDocument)
		if err != nil {
			return err
		}
		if content != "" {
			if state.Seen, err = decodeSeen(content); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, &core.StorageError{Op: "load", Err: err}
	}

	return state, nil
}

// Save replaces both documents atomically
func (b *BuntStorage) Save(state *core.State) error {
	watchLists, err := encodeWatchLists(state.WatchLists)
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}

	seen, err := encodeSeen(state.Seen)
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}

	err = b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(keyPrefix+watchListsDocument, watchLists, nil); err != nil {
			return fmt.Errorf("failed to store watch lists: %w", err)
		}
		if _, _, err := tx.Set(keyPrefix+seenDocument, seen, nil); err != nil {
			return fmt.Errorf("failed to store seen set: %w", err)
		}
		return nil
	})
	if err != nil {
		return &core.StorageError{Op: "save", Err: err}
	}

	return nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func get(tx *buntdb.Tx, name string) (string, error) {
	content, err := tx.Get(keyPrefix + name)
	if errors.Is(err, buntdb.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return content, nil
}
