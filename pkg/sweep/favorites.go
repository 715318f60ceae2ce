package sweep

import (
	"context"
	"errors"

	"github.com/jpillora/backoff"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/format"
	"github.com/raykavin/dexwatch/pkg/logger"
)

// Entries gives the favorite sweep its snapshot of watch lists, see watchlist.Manager
type Entries interface {
	AllEntries() (core.WatchLists, error)
}

// Favorites sends every subscriber the current price of each pair it follows
type Favorites struct {
	entries  Entries
	market   core.MarketData
	notifier core.Notifier
	log      logger.Logger
	options
}

func NewFavorites(entries Entries, market core.MarketData, notifier core.Notifier, log logger.Logger, opts ...Option) *Favorites {
	return &Favorites{
		entries:  entries,
		market:   market,
		notifier: notifier,
		log:      log.WithField("task", TaskFavorites),
		options:  newOptions(opts),
	}
}

// Run performs one sweep, it fits scheduler.Func
func (f *Favorites) Run(ctx context.Context) error {
	report, err := f.Sweep(ctx)
	if err != nil {
		return err
	}

	f.log.WithFields(map[string]any{
		"checked":  report.Checked,
		"notified": report.Notified,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("favorite sweep finished")
	return nil
}

// Sweep walks subscribers in sorted order and each subscriber list in order.
// An absent or failing entry is skipped, it never aborts the sweep. Once ctx is
// done the sweep stops before the next entry, the entry in flight completes.
func (f *Favorites) Sweep(ctx context.Context) (Report, error) {
	var report Report

	lists, err := f.entries.AllEntries()
	if err != nil {
		return report, err
	}

	itemCtx := context.WithoutCancel(ctx)
	pause := &backoff.Backoff{
		Min:    f.delay,
		Max:    f.pause,
		Factor: 2,
		Jitter: true,
	}

	first := true
	for _, subscriber := range lists.Subscribers() {
		for _, id := range lists[subscriber] {
			if !first && !wait(ctx, f.delay) {
				return report, nil
			}
			first = false

			if ctx.Err() != nil {
				return report, nil
			}

			log := f.log.WithFields(map[string]any{
				"subscriber": subscriber,
				"pair":       id,
			})

			item, err := f.market.FetchByAddress(itemCtx, id)
			if err != nil {
				report.Failed++
				f.recorder.ProviderFailed("fetch", err)
				logProviderError(log, err, "failed to fetch favorite pair")

				if errors.Is(err, core.ErrRateLimited) {
					d := max(pause.Duration(), retryAfter(err))
					log.WithField("pause", d.String()).Warn("rate limited, pausing sweep")
					if !wait(ctx, d) {
						return report, nil
					}
				}
				continue
			}
			pause.Reset()

			if item == nil {
				report.Skipped++
				log.Debug("favorite pair not found")
				continue
			}
			report.Checked++

			err = f.notifier.Send(itemCtx, subscriber, format.Favorite(*item), nil)
			f.recorder.NotificationSent(KindFavorite, err)
			if err != nil {
				report.Failed++
				log.WithError(err).Warn("failed to send favorite price")
				continue
			}
			report.Notified++
		}
	}

	return report, nil
}
