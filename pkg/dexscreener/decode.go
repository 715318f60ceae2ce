package dexscreener

import (
	"errors"

	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var errMalformed = errors.New("malformed provider response")

// decodePair reads the "pair" object of a lookup response.
// A missing or null "pair" means the provider does not know the address.
func decodePair(body []byte) (core.Item, bool, error) {
	if !gjson.ValidBytes(body) {
		return core.Item{}, false, errMalformed
	}

	pair := gjson.GetBytes(body, "pair")
	if !pair.Exists() || pair.Type == gjson.Null || !pair.Get("pairAddress").Exists() {
		return core.Item{}, false, nil
	}

	return decodeItem(pair), true, nil
}

// decodePairs reads the "pairs" array of a search response, preserving order
func decodePairs(body []byte) ([]core.Item, error) {
	if !gjson.ValidBytes(body) {
		return nil, errMalformed
	}

	items := make([]core.Item, 0)
	gjson.GetBytes(body, "pairs").ForEach(func(_, pair gjson.Result) bool {
		if pair.Get("pairAddress").String() != "" {
			items = append(items, decodeItem(pair))
		}
		return true
	})

	return items, nil
}

func decodeItem(pair gjson.Result) core.Item {
	price, err := decimal.NewFromString(pair.Get("priceUsd").String())
	if err != nil {
		price = decimal.Zero
	}

	return core.Item{
		ID:           pair.Get("pairAddress").String(),
		Network:      pair.Get("chainId").String(),
		DexID:        pair.Get("dexId").String(),
		BaseName:     pair.Get("baseToken.name").String(),
		BaseSymbol:   pair.Get("baseToken.symbol").String(),
		QuoteSymbol:  pair.Get("quoteToken.symbol").String(),
		PriceUSD:     price,
		LiquidityUSD: pair.Get("liquidity.usd").Float(),
		FDV:          pair.Get("fdv").Float(),
		Change24h:    pair.Get("priceChange.h24").Float(),
	}
}
