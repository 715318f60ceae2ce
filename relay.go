// Package dexwatch wires the DEX pair watch-list relay: persistent state, the
// market data provider, Telegram delivery and the two polling sweeps.
package dexwatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raykavin/dexwatch/pkg/command"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/dexscreener"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/metrics"
	"github.com/raykavin/dexwatch/pkg/scheduler"
	"github.com/raykavin/dexwatch/pkg/storage"
	"github.com/raykavin/dexwatch/pkg/sweep"
	"github.com/raykavin/dexwatch/pkg/watchlist"
)

// DefaultLog is the default logger instance
var DefaultLog logger.Logger

// Relay represents the running watch-list relay
type Relay struct {
	settings *core.Settings
	storage  core.StateStorage
	market   core.MarketData
	notifier core.Notifier
	telegram core.NotifierWithStart
	registry *prometheus.Registry
	log      logger.Logger
	level    *logger.Level

	keeper    *storage.Keeper
	favorites *watchlist.Manager
	router    *command.Router
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
}

// NewRelay creates the relay from settings. Collaborators not provided through
// options are built from settings.
func NewRelay(settings *core.Settings, options ...Option) (*Relay, error) {
	relay := &Relay{
		settings: settings,
		log:      DefaultLog,
	}

	// Apply custom options
	for _, option := range options {
		option(relay)
	}
	if relay.level != nil {
		relay.log.SetLevel(*relay.level)
	}

	if err := validateSettings(settings, relay.notifier != nil); err != nil {
		return nil, err
	}

	// Initialize storage
	if err := initializeStorage(relay); err != nil {
		return nil, err
	}
	relay.keeper = storage.NewKeeper(relay.storage, storage.WithSeenBounds(settings.Seen))
	relay.favorites = watchlist.NewManager(relay.keeper, relay.log)

	if relay.market == nil {
		relay.market = dexscreener.NewClient(dexscreener.Config{
			BaseURL:    settings.Provider.BaseURL,
			Timeout:    settings.Provider.Timeout,
			MaxRetries: settings.Provider.MaxRetries,
		}, relay.log)
	}
	relay.router = command.NewRouter(relay.favorites, relay.market, settings.Provider.SiteURL, relay.log)

	// Initialize notification systems
	if err := initializeNotifications(relay); err != nil {
		relay.keeper.Close()
		return nil, err
	}

	if relay.registry == nil {
		relay.registry = prometheus.NewRegistry()
	}
	relay.metrics = metrics.New(relay.registry)

	if err := initializeScheduler(relay); err != nil {
		relay.keeper.Close()
		return nil, err
	}

	return relay, nil
}

// validateSettings rejects settings the relay cannot start with
func validateSettings(settings *core.Settings, hasNotifier bool) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are required", core.ErrConfig)
	}
	if !hasNotifier && settings.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram token is required", core.ErrConfig)
	}
	if settings.Favorites.Interval <= 0 {
		return fmt.Errorf("%w: favorites interval must be positive", core.ErrConfig)
	}

	if !settings.Discovery.Enabled {
		return nil
	}
	if settings.Discovery.Interval <= 0 {
		return fmt.Errorf("%w: discovery interval must be positive", core.ErrConfig)
	}
	if settings.Broadcast == "" {
		return fmt.Errorf("%w: broadcast recipient is required when discovery is enabled", core.ErrConfig)
	}
	if len(settings.Discovery.Networks) == 0 {
		return fmt.Errorf("%w: at least one discovery network is required", core.ErrConfig)
	}
	return nil
}

// initializeStorage opens the configured store unless one was provided
func initializeStorage(relay *Relay) error {
	if relay.storage != nil {
		return nil
	}

	store, err := storage.Open(relay.settings.Storage)
	if err != nil {
		return err
	}
	relay.storage = store
	return nil
}

// initializeScheduler registers the favorite and discovery sweeps
func initializeScheduler(relay *Relay) error {
	settings := relay.settings
	relay.scheduler = scheduler.New(relay.log, scheduler.WithRecorder(relay.metrics))

	sweepOptions := []sweep.Option{
		sweep.WithRecorder(relay.metrics),
		sweep.WithSiteURL(settings.Provider.SiteURL),
		sweep.WithDelay(settings.Provider.Delay),
	}

	favorites := sweep.NewFavorites(relay.favorites, relay.market, relay.notifier, relay.log, sweepOptions...)
	err := relay.scheduler.Register(sweep.TaskFavorites, settings.Favorites.Interval, favorites.Run,
		scheduler.RunOnStart(settings.Favorites.RunOnStart))
	if err != nil {
		return err
	}

	if !settings.Discovery.Enabled {
		relay.log.Info("discovery sweep disabled")
		return nil
	}

	discovery := sweep.NewDiscovery(relay.keeper, relay.market, relay.notifier,
		settings.Broadcast, settings.Discovery.Networks, relay.log, sweepOptions...)
	return relay.scheduler.Register(sweep.TaskDiscovery, settings.Discovery.Interval, discovery.Run)
}

// Favorites returns the watch-list manager
func (r *Relay) Favorites() *watchlist.Manager {
	return r.favorites
}

// Router returns the inbound command router
func (r *Relay) Router() *command.Router {
	return r.router
}

// Scheduler returns the periodic task runner
func (r *Relay) Scheduler() *scheduler.Scheduler {
	return r.scheduler
}

// Run starts the sweeps and the Telegram poller and blocks until ctx is done.
// On return the in-flight sweeps have finished and the store is closed.
func (r *Relay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsDone := make(chan error, 1)
	if r.settings.MetricsAddress != "" {
		go func() {
			metricsDone <- metrics.Serve(ctx, r.settings.MetricsAddress, r.registry, r.log)
		}()
	} else {
		close(metricsDone)
	}

	if r.telegram != nil {
		r.telegram.Start()
	}
	r.scheduler.Start(ctx)
	r.log.Info("relay started")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-metricsDone:
		if err != nil {
			runErr = fmt.Errorf("metrics endpoint: %w", err)
			cancel()
		} else {
			<-ctx.Done()
		}
	}

	r.log.Info("shutting down, waiting for running sweeps")
	r.scheduler.Stop()
	if r.telegram != nil {
		r.telegram.Stop()
	}

	return errors.Join(runErr, r.keeper.Close())
}
