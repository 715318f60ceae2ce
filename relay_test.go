package dexwatch

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/logger/logrus"
	"github.com/raykavin/dexwatch/pkg/logger/zerolog"
	"github.com/raykavin/dexwatch/pkg/storage"
	"github.com/raykavin/dexwatch/pkg/sweep"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	recipient string
	text      string
	action    *core.Action
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, recipient string, text string, action *core.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{recipient, text, action})
	return nil
}

func (f *fakeNotifier) sentTo(recipient string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var messages []sentMessage
	for _, message := range f.messages {
		if message.recipient == recipient {
			messages = append(messages, message)
		}
	}
	return messages
}

type fakeMarket struct {
	pairs   map[string]core.Item
	results map[string][]core.Item
}

func (f *fakeMarket) FetchByAddress(_ context.Context, id string) (*core.Item, error) {
	item, ok := f.pairs[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (f *fakeMarket) Search(_ context.Context, query string) ([]core.Item, error) {
	return f.results[query], nil
}

func testSettings() *core.Settings {
	return &core.Settings{
		Broadcast: "@alerts",
		Favorites: core.FavoriteSettings{Interval: time.Hour, RunOnStart: true},
		Discovery: core.DiscoverySettings{
			Enabled:  true,
			Interval: time.Hour,
			Networks: []string{"ethereum"},
		},
		Provider: core.ProviderSettings{SiteURL: "https://dexscreener.com"},
		Seen:     core.SeenSettings{MaxEntries: 100},
	}
}

func quietLog() logger.Logger {
	return zerolog.New(zerolog.Options{Level: logger.Disabled})
}

func TestNewRelay_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(settings *core.Settings)
	}{
		{"missing token", func(s *core.Settings) {}},
		{"missing broadcast", func(s *core.Settings) { s.Telegram.Token = "x"; s.Broadcast = "" }},
		{"no networks", func(s *core.Settings) { s.Telegram.Token = "x"; s.Discovery.Networks = nil }},
		{"zero favorites interval", func(s *core.Settings) { s.Telegram.Token = "x"; s.Favorites.Interval = 0 }},
		{"zero discovery interval", func(s *core.Settings) { s.Telegram.Token = "x"; s.Discovery.Interval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.modify(settings)

			_, err := NewRelay(settings, WithLogger(quietLog()))
			require.ErrorIs(t, err, core.ErrConfig)
		})
	}
}

func TestNewRelay_DiscoveryDisabled(t *testing.T) {
	settings := testSettings()
	settings.Broadcast = ""
	settings.Discovery.Enabled = false

	bunt, err := storage.FromMemory()
	require.NoError(t, err)

	relay, err := NewRelay(settings,
		WithLogger(quietLog()),
		WithStorage(bunt),
		WithMarketData(&fakeMarket{}),
		WithNotifier(&fakeNotifier{}),
	)
	require.NoError(t, err)
	require.Len(t, relay.Scheduler().Tasks(), 1)
	require.NoError(t, relay.keeper.Close())
}

func TestNewRelay_LogLevelAppliesToCustomLogger(t *testing.T) {
	settings := testSettings()
	settings.Broadcast = ""
	settings.Discovery.Enabled = false

	bunt, err := storage.FromMemory()
	require.NoError(t, err)

	log := logrus.New(logger.InfoLevel, time.RFC3339, false, io.Discard)
	relay, err := NewRelay(settings,
		WithLogLevel(logger.ErrorLevel),
		WithLogger(log),
		WithStorage(bunt),
		WithMarketData(&fakeMarket{}),
		WithNotifier(&fakeNotifier{}),
	)
	require.NoError(t, err)
	require.Equal(t, logger.ErrorLevel, log.GetLevel())
	require.NoError(t, relay.keeper.Close())
}

func TestRelay_Run(t *testing.T) {
	bunt, err := storage.FromMemory()
	require.NoError(t, err)

	market := &fakeMarket{
		pairs: map[string]core.Item{
			"p1": {ID: "p1", BaseName: "Pepe", QuoteSymbol: "WETH", PriceUSD: decimal.RequireFromString("1.5")},
		},
		results: map[string][]core.Item{
			"ethereum": {{ID: "n1", Network: "ethereum", BaseSymbol: "NEW", QuoteSymbol: "WETH"}},
		},
	}
	notifier := &fakeNotifier{}

	relay, err := NewRelay(testSettings(),
		WithLogger(quietLog()),
		WithStorage(bunt),
		WithMarketData(market),
		WithNotifier(notifier),
	)
	require.NoError(t, err)

	_, err = relay.Favorites().Add("u1", "p1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// favorites run on start
	require.Eventually(t, func() bool { return len(notifier.sentTo("u1")) == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, strings.Contains(notifier.sentTo("u1")[0].text, "Pepe/WETH"))

	require.Eventually(t, func() bool {
		return relay.Scheduler().Trigger(sweep.TaskDiscovery)
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(notifier.sentTo("@alerts")) == 1 }, time.Second, 5*time.Millisecond)

	alert := notifier.sentTo("@alerts")[0]
	require.Equal(t, "https://dexscreener.com/ethereum/n1", alert.action.URL)

	require.Eventually(t, func() bool {
		state, err := relay.keeper.Snapshot()
		return err == nil && state.Seen.Contains("n1")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
