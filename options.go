package dexwatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
)

// Option is a functional option for configuring a Relay instance
type Option func(*Relay)

// WithStorage sets the state storage, by default the one named by the storage settings is opened
func WithStorage(storage core.StateStorage) Option {
	return func(relay *Relay) {
		relay.storage = storage
	}
}

// WithMarketData replaces the DexScreener client
func WithMarketData(market core.MarketData) Option {
	return func(relay *Relay) {
		relay.market = market
	}
}

// WithNotifier replaces the Telegram sink. A notifier that also implements
// core.NotifierWithStart is started and stopped with the relay.
func WithNotifier(notifier core.Notifier) Option {
	return func(relay *Relay) {
		relay.notifier = notifier
		if starter, ok := notifier.(core.NotifierWithStart); ok {
			relay.telegram = starter
		}
	}
}

// WithLogger sets the logger, DefaultLog is used otherwise
func WithLogger(log logger.Logger) Option {
	return func(relay *Relay) {
		relay.log = log
	}
}

// WithLogLevel sets the log level. eg: logger.DebugLevel, logger.InfoLevel, logger.WarnLevel
func WithLogLevel(level logger.Level) Option {
	return func(relay *Relay) {
		relay.level = &level
	}
}

// WithRegistry registers the relay metrics on registry instead of a private one
func WithRegistry(registry *prometheus.Registry) Option {
	return func(relay *Relay) {
		relay.registry = registry
	}
}
