package dexwatch

import (
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/dexscreener"
	"github.com/raykavin/dexwatch/pkg/notification"
)

// initializeNotifications sets up the Telegram sink unless a notifier was provided
func initializeNotifications(relay *Relay) error {
	if relay.notifier != nil {
		return nil
	}

	telegram, err := notification.NewTelegram(relay.settings.Telegram, relay.router, relay.log,
		notification.WithCommandTimeout(commandTimeout(relay.settings.Provider)))
	if err != nil {
		return err
	}

	// Register telegram as notifier
	WithNotifier(telegram)(relay)
	return nil
}

// commandTimeout covers every attempt of a provider call made by an inbound
// command plus one retry pause
func commandTimeout(provider core.ProviderSettings) time.Duration {
	timeout := provider.Timeout
	if timeout <= 0 {
		timeout = dexscreener.DefaultTimeout
	}
	return timeout*time.Duration(max(provider.MaxRetries, 0)+1) + dexscreener.DefaultRetryMax
}
