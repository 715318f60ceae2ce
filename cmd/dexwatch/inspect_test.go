package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintState(t *testing.T) {
	settings := core.StorageSettings{Driver: storage.DriverBuntDB, Path: filepath.Join(t.TempDir(), "state.db")}

	store, err := storage.Open(settings)
	require.NoError(t, err)

	state := core.NewState()
	state.WatchLists.Add("u1", "0xabc")
	state.WatchLists.Add("u2", "0xdef")
	state.Seen.Add("p1", time.Now())
	require.NoError(t, store.Save(state))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	require.NoError(t, printState(&out, settings))

	text := out.String()
	for _, expected := range []string{"WATCH LISTS", "u1", "0xabc", "u2", "0xdef", "SEEN PAIRS", "p1", "TOTAL"} {
		assert.Contains(t, text, expected)
	}
}

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		assert.Equal(t, "pepe", r.URL.Query().Get("q"))
		w.Write([]byte(`{"pairs":[{"chainId":"ethereum","pairAddress":"0xabc","baseToken":{"name":"Pepe","symbol":"PEPE"},"quoteToken":{"symbol":"WETH"},"priceUsd":"0.01"}]}`))
	}))
	defer server.Close()

	settings := core.ProviderSettings{BaseURL: server.URL, Timeout: time.Second}

	item, err := lookup(context.Background(), settings, " PEPE ")
	require.NoError(t, err)
	require.Equal(t, "0xabc", item.ID)

	var out bytes.Buffer
	require.NoError(t, printItem(&out, "https://dexscreener.com", item))
	assert.Contains(t, out.String(), "Pepe/WETH")
	assert.Contains(t, out.String(), "https://dexscreener.com/ethereum/0xabc")
}

func TestLookup_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer server.Close()

	_, err := lookup(context.Background(), core.ProviderSettings{BaseURL: server.URL}, "nothing")
	require.ErrorIs(t, err, core.ErrNotFound)
}
