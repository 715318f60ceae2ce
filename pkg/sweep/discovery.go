package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/format"
	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/raykavin/dexwatch/pkg/storage"
)

// Store is the serialized state access of the discovery sweep, see storage.Keeper
type Store interface {
	Snapshot() (*core.State, error)
	Update(fn func(state *core.State) error) error
}

// Discovery announces pairs never seen before to a single broadcast recipient
type Discovery struct {
	store     Store
	market    core.MarketData
	notifier  core.Notifier
	recipient string
	networks  []string
	log       logger.Logger
	options
}

func NewDiscovery(store Store, market core.MarketData, notifier core.Notifier, recipient string, networks []string, log logger.Logger, opts ...Option) *Discovery {
	return &Discovery{
		store:     store,
		market:    market,
		notifier:  notifier,
		recipient: recipient,
		networks:  networks,
		log:       log.WithField("task", TaskDiscovery),
		options:   newOptions(opts),
	}
}

// Run performs one sweep, it fits scheduler.Func
func (d *Discovery) Run(ctx context.Context) error {
	report, err := d.Sweep(ctx)

	d.log.WithFields(map[string]any{
		"checked":  report.Checked,
		"notified": report.Notified,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("discovery sweep finished")

	return err
}

// Sweep queries every network in order and notifies each returned pair that is
// not in the seen-set yet. A pair is recorded as seen only after its
// notification went out. A provider failure aborts the current network only,
// the returned error joins every network failure.
func (d *Discovery) Sweep(ctx context.Context) (Report, error) {
	var report Report

	state, err := d.store.Snapshot()
	if err != nil {
		return report, err
	}
	seen := state.Seen

	itemCtx := context.WithoutCancel(ctx)
	var errs []error
	var next time.Duration

	for i, network := range d.networks {
		if i > 0 && !wait(ctx, next) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		next = d.delay

		log := d.log.WithField("network", network)

		items, err := d.market.Search(itemCtx, network)
		if err != nil {
			report.Failed++
			d.recorder.ProviderFailed("search", err)
			logProviderError(log, err, "failed to search network")
			errs = append(errs, fmt.Errorf("network %s: %w", network, err))

			if errors.Is(err, core.ErrRateLimited) {
				next = max(d.delay, min(retryAfter(err), d.pause))
			}
			continue
		}

		for _, item := range items {
			if ctx.Err() != nil {
				break
			}
			report.Checked++

			if seen.Contains(item.ID) {
				report.Skipped++
				continue
			}

			if d.announce(itemCtx, log, item) {
				report.Notified++
			} else {
				report.Failed++
				continue
			}

			// local copy keeps one sweep from announcing the same pair twice,
			// even when recording it failed
			seen.Add(item.ID, d.now())
		}
	}

	d.recorder.SetSeenEntries(seen.Len())
	return report, errors.Join(errs...)
}

// announce sends the alert then records the pair as seen. It reports whether
// the alert was delivered.
func (d *Discovery) announce(ctx context.Context, log logger.Logger, item core.Item) bool {
	log = log.WithField("pair", item.ID)

	var action *core.Action
	if d.siteURL != "" {
		action = core.OpenAction(d.siteURL, item)
	}

	err := d.notifier.Send(ctx, d.recipient, format.Discovery(item), action)
	d.recorder.NotificationSent(KindDiscovery, err)
	if err != nil {
		log.WithError(err).Warn("failed to send new pair alert")
		return false
	}

	if err := d.markSeen(item.ID); err != nil {
		if err = d.markSeen(item.ID); err != nil {
			log.WithError(err).Error("failed to record pair as seen, it will be announced again")
		}
	}
	return true
}

func (d *Discovery) markSeen(id string) error {
	return d.store.Update(func(state *core.State) error {
		if !state.Seen.Add(id, d.now()) {
			return storage.ErrUnchanged
		}
		return nil
	})
}
