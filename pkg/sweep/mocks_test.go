package sweep

import (
	"context"
	"errors"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/storage"
	"github.com/stretchr/testify/mock"
)

type marketMock struct {
	mock.Mock
}

func (m *marketMock) FetchByAddress(ctx context.Context, id string) (*core.Item, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*core.Item)
	return item, args.Error(1)
}

func (m *marketMock) Search(ctx context.Context, query string) ([]core.Item, error) {
	args := m.Called(ctx, query)
	items, _ := args.Get(0).([]core.Item)
	return items, args.Error(1)
}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Send(ctx context.Context, recipient string, text string, action *core.Action) error {
	args := m.Called(ctx, recipient, text, action)
	return args.Error(0)
}

type staticEntries core.WatchLists

func (e staticEntries) AllEntries() (core.WatchLists, error) {
	return core.WatchLists(e).Clone(), nil
}

// flakyStore fails the next failures updates
type flakyStore struct {
	*storage.Keeper
	failures int
}

func (s *flakyStore) Update(fn func(state *core.State) error) error {
	if s.failures > 0 {
		s.failures--
		return &core.StorageError{Op: "save", Err: errors.New("disk full")}
	}
	return s.Keeper.Update(fn)
}
