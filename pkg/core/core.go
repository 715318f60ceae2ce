package core

import (
	"context"
)

// MarketData is the read-only view of the market data provider
type MarketData interface {
	// FetchByAddress returns the current state of a pair, or nil when the provider
	// does not know the address
	FetchByAddress(ctx context.Context, id string) (*Item, error)

	// Search returns pairs matching a free text query ordered by relevance
	Search(ctx context.Context, query string) ([]Item, error)
}

type Notifier interface {
	Send(ctx context.Context, recipient string, text string, action *Action) error
}

type NotifierWithStart interface {
	Notifier
	Start()
	Stop()
}

// StateStorage persists the whole relay state.
// Save must leave the previous durable state untouched when it fails.
type StateStorage interface {
	Load() (*State, error)
	Save(state *State) error
	Close() error
}
