package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
)

// documentVersion is written in every persisted document, a missing version reads as 1
const documentVersion = 1

const (
	watchListsDocument = "watchlists"
	seenDocument       = "seen"
)

type watchListsDoc struct {
	Version     int                 `json:"version"`
	Subscribers map[string][]string `json:"subscribers"`
}

type seenDoc struct {
	Version int           `json:"version"`
	Items   []seenItemDoc `json:"items"`
}

type seenItemDoc struct {
	ID     string    `json:"id"`
	SeenAt time.Time `json:"seen_at"`
}

func encodeWatchLists(lists core.WatchLists) (string, error) {
	doc := watchListsDoc{
		Version:     documentVersion,
		Subscribers: make(map[string][]string, len(lists)),
	}
	for _, subscriber := range lists.Subscribers() {
		doc.Subscribers[subscriber] = lists.List(subscriber)
	}

	content, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal watch lists: %w", err)
	}
	return string(content), nil
}

func decodeWatchLists(content string) (core.WatchLists, error) {
	var doc watchListsDoc
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal watch lists: %w", err)
	}
	if err := checkVersion(watchListsDocument, doc.Version); err != nil {
		return nil, err
	}

	// Add enforces uniqueness on documents written by hand or older versions
	lists := make(core.WatchLists, len(doc.Subscribers))
	for subscriber, ids := range doc.Subscribers {
		for _, id := range ids {
			lists.Add(subscriber, id)
		}
	}
	return lists, nil
}

func encodeSeen(seen *core.SeenSet) (string, error) {
	doc := seenDoc{Version: documentVersion, Items: make([]seenItemDoc, 0, seen.Len())}
	for _, entry := range seen.Entries() {
		doc.Items = append(doc.Items, seenItemDoc{ID: entry.ID, SeenAt: entry.SeenAt.UTC()})
	}

	content, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal seen set: %w", err)
	}
	return string(content), nil
}

func decodeSeen(content string) (*core.SeenSet, error) {
	var doc seenDoc
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal seen set: %w", err)
	}
	if err := checkVersion(seenDocument, doc.Version); err != nil {
		return nil, err
	}

	seen := core.NewSeenSet()
	for _, item := range doc.Items {
		seen.Add(item.ID, item.SeenAt)
	}
	return seen, nil
}

func checkVersion(name string, version int) error {
	if version > documentVersion {
		return fmt.Errorf("%s document version %d is newer than supported version %d",
			name, version, documentVersion)
	}
	return nil
}
