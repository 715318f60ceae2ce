package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a snapshot of a pair as reported by the market data provider
type Item struct {
	ID           string          // Pair address
	Network      string          // Chain identifier (ethereum, solana, ...)
	DexID        string          // Exchange the pair trades on
	BaseName     string          // Base token name
	BaseSymbol   string          // Base token symbol
	QuoteSymbol  string          // Quote token symbol
	PriceUSD     decimal.Decimal // Last price in USD
	LiquidityUSD float64         // Pool liquidity in USD
	FDV          float64         // Fully diluted valuation in USD
	Change24h    float64         // Price change over the last 24h in percent
}

// Pair returns the human readable pair name
func (i Item) Pair() string {
	base := i.BaseName
	if base == "" {
		base = i.BaseSymbol
	}
	return fmt.Sprintf("%s/%s", base, i.QuoteSymbol)
}

func (i Item) String() string {
	return fmt.Sprintf("%s (%s) %s @ $%s", i.Pair(), i.Network, i.ID, i.PriceUSD.String())
}

// Action is an optional link attached to an outgoing message
type Action struct {
	Label string
	URL   string
}

// OpenAction builds the "open externally" link for an item on the provider site
func OpenAction(siteURL string, item Item) *Action {
	return &Action{
		Label: "Buy",
		URL:   fmt.Sprintf("%s/%s/%s", strings.TrimRight(siteURL, "/"), item.Network, item.ID),
	}
}
