package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/dexwatch"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/dexscreener"
	"github.com/raykavin/dexwatch/pkg/format"
	"github.com/raykavin/dexwatch/pkg/storage"
)

const seenTimeLayout = "2006-01-02 15:04:05"

// printState renders the persisted watch lists and seen-set as tables
func printState(w io.Writer, settings core.StorageSettings) error {
	store, err := storage.Open(settings)
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.Load()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "------ WATCH LISTS -------")
	lists := tablewriter.NewWriter(w)
	lists.SetHeader([]string{"Subscriber", "Pair"})
	lists.SetAutoMergeCells(true)
	for _, subscriber := range state.WatchLists.Subscribers() {
		for _, id := range state.WatchLists.List(subscriber) {
			lists.Append([]string{subscriber, id})
		}
	}
	lists.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "------ SEEN PAIRS -------")
	seen := tablewriter.NewWriter(w)
	seen.SetHeader([]string{"#", "Pair", "Seen At"})
	seen.SetFooter([]string{"", "TOTAL", fmt.Sprint(state.Seen.Len())})
	for i, entry := range state.Seen.Entries() {
		seenAt := "-"
		if !entry.SeenAt.IsZero() {
			seenAt = entry.SeenAt.Local().Format(seenTimeLayout)
		}
		seen.Append([]string{fmt.Sprint(i + 1), entry.ID, seenAt})
	}
	seen.Render()

	return nil
}

// lookup returns the best provider match of query
func lookup(ctx context.Context, settings core.ProviderSettings, query string) (core.Item, error) {
	client := dexscreener.NewClient(dexscreener.Config{
		BaseURL:    settings.BaseURL,
		Timeout:    settings.Timeout,
		MaxRetries: settings.MaxRetries,
	}, dexwatch.DefaultLog)

	items, err := client.Search(ctx, strings.ToLower(strings.TrimSpace(query)))
	if err != nil {
		return core.Item{}, err
	}
	if len(items) == 0 {
		return core.Item{}, fmt.Errorf("%w: %s", core.ErrNotFound, query)
	}
	return items[0], nil
}

func printItem(w io.Writer, siteURL string, item core.Item) error {
	_, err := fmt.Fprintf(w, "%s\n🔗 %s\n", format.Lookup(item), core.OpenAction(siteURL, item).URL)
	return err
}
