package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *core.State {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	state := core.NewState()
	state.WatchLists.Add("u1", "0xabc")
	state.WatchLists.Add("u1", "0xdef")
	state.WatchLists.Add("42", "0x123")
	state.Seen.Add("p1", base)
	state.Seen.Add("p2", base.Add(time.Minute))
	return state
}

func requireSameState(t *testing.T, expected, actual *core.State) {
	t.Helper()

	require.Equal(t, expected.WatchLists.Subscribers(), actual.WatchLists.Subscribers())
	for _, subscriber := range expected.WatchLists.Subscribers() {
		require.Equal(t, expected.WatchLists.List(subscriber), actual.WatchLists.List(subscriber))
	}

	expectedSeen, actualSeen := expected.Seen.Entries(), actual.Seen.Entries()
	require.Len(t, actualSeen, len(expectedSeen))
	for i := range expectedSeen {
		require.Equal(t, expectedSeen[i].ID, actualSeen[i].ID)
		require.True(t, expectedSeen[i].SeenAt.Equal(actualSeen[i].SeenAt))
	}
}

func backends(t *testing.T) map[string]core.StateStorage {
	bunt, err := FromMemory()
	require.NoError(t, err)

	sql, err := FromSQLite(filepath.Join(t.TempDir(), "state.sqlite"))
	require.NoError(t, err)

	t.Cleanup(func() {
		bunt.Close()
		sql.Close()
	})

	return map[string]core.StateStorage{"buntdb": bunt, "sqlite": sql}
}

func TestStorage_FirstRunIsEmpty(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			state, err := storage.Load()
			require.NoError(t, err)
			require.Empty(t, state.WatchLists)
			require.Zero(t, state.Seen.Len())
		})
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, storage := range backends(t) {
		t.Run(name, func(t *testing.T) {
			expected := sampleState()
			require.NoError(t, storage.Save(expected))

			actual, err := storage.Load()
			require.NoError(t, err)
			requireSameState(t, expected, actual)

			require.NoError(t, storage.Save(core.NewState()))
			actual, err = storage.Load()
			require.NoError(t, err)
			requireSameState(t, core.NewState(), actual)
		})
	}
}

func TestBuntStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dexwatch.db")

	storage, err := FromFile(path)
	require.NoError(t, err)
	require.NoError(t, storage.Save(sampleState()))
	require.NoError(t, storage.Close())

	storage, err = FromFile(path)
	require.NoError(t, err)
	defer storage.Close()

	state, err := storage.Load()
	require.NoError(t, err)
	requireSameState(t, sampleState(), state)
}

func TestDocuments_Version(t *testing.T) {
	lists, err := decodeWatchLists(`{"subscribers":{"u1":["a","a","b"]}}`)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, lists.List("u1"))

	_, err = decodeSeen(`{"version":99,"items":[]}`)
	require.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(core.StorageSettings{Driver: "redis", Path: "x"})
	require.ErrorIs(t, err, core.ErrConfig)
}

// countingStorage counts saves and can be told to fail them
type countingStorage struct {
	core.StateStorage
	mu     sync.Mutex
	saves  int
	failOn bool
}

func (c *countingStorage) Save(state *core.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.saves++
	if c.failOn {
		return &core.StorageError{Op: "save", Err: errors.New("disk full")}
	}
	return c.StateStorage.Save(state)
}

func newKeeper(t *testing.T, options ...KeeperOption) (*Keeper, *countingStorage) {
	bunt, err := FromMemory()
	require.NoError(t, err)

	storage := &countingStorage{StateStorage: bunt}
	keeper := NewKeeper(storage, options...)
	t.Cleanup(func() { keeper.Close() })
	return keeper, storage
}

func TestKeeper_ConcurrentUpdates(t *testing.T) {
	keeper, _ := newKeeper(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subscriber := fmt.Sprintf("u%d", i%5)
			err := keeper.Update(func(state *core.State) error {
				state.WatchLists.Add(subscriber, fmt.Sprintf("p%d", i))
				state.WatchLists.Add(subscriber, "shared")
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := keeper.Snapshot()
	require.NoError(t, err)
	require.Len(t, state.WatchLists.Subscribers(), 5)
	for _, subscriber := range state.WatchLists.Subscribers() {
		// ten distinct ids plus the shared one, never duplicated
		require.Len(t, state.WatchLists.List(subscriber), 11)
	}
}

func TestKeeper_Unchanged(t *testing.T) {
	keeper, storage := newKeeper(t)

	err := keeper.Update(func(state *core.State) error { return ErrUnchanged })
	require.NoError(t, err)
	require.Zero(t, storage.saves)

	boom := errors.New("boom")
	err = keeper.Update(func(state *core.State) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Zero(t, storage.saves)
}

func TestKeeper_SaveFailureKeepsPreviousState(t *testing.T) {
	keeper, storage := newKeeper(t)

	require.NoError(t, keeper.Update(func(state *core.State) error {
		state.WatchLists.Add("u1", "p1")
		return nil
	}))

	storage.failOn = true
	err := keeper.Update(func(state *core.State) error {
		state.WatchLists.Add("u1", "p2")
		return nil
	})
	require.ErrorIs(t, err, core.ErrIO)

	state, err := keeper.Snapshot()
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, state.WatchLists.List("u1"))
}

func TestKeeper_PrunesSeen(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	keeper, _ := newKeeper(t,
		WithSeenBounds(core.SeenSettings{MaxEntries: 2}),
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, keeper.Update(func(state *core.State) error {
		for i := 0; i < 4; i++ {
			state.Seen.Add(fmt.Sprintf("p%d", i), now)
		}
		return nil
	}))

	state, err := keeper.Snapshot()
	require.NoError(t, err)
	require.Equal(t, []string{"p2", "p3"}, state.Seen.IDs())
}
