// Package format renders the notification texts sent to subscribers
package format

import (
	"strings"

	"github.com/raykavin/dexwatch/pkg/core"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Favorite is the periodic price update of a followed pair
func Favorite(item core.Item) string {
	var sb strings.Builder
	sb.WriteString("💰 FAVORITE PAIR PRICE\n")
	printer.Fprintf(&sb, "🔹 Pair: %s\n", item.Pair())
	printer.Fprintf(&sb, "🔹 Price: $%s\n", item.PriceUSD.String())
	printer.Fprintf(&sb, "🔹 24h Change: %.2f%%", item.Change24h)
	return sb.String()
}

// Discovery announces a pair seen for the first time
func Discovery(item core.Item) string {
	var sb strings.Builder
	printer.Fprintf(&sb, "🆕 NEW PAIR - %s\n", item.Network)
	printer.Fprintf(&sb, "🔹 Pair: %s\n", item.Pair())
	printer.Fprintf(&sb, "🔹 Address: %s\n", item.ID)
	writeMarket(&sb, item)
	return sb.String()
}

// Lookup answers a free text search
func Lookup(item core.Item) string {
	var sb strings.Builder
	sb.WriteString("🔍 PAIR FOUND\n")
	printer.Fprintf(&sb, "🔹 Pair: %s\n", item.Pair())
	writeMarket(&sb, item)
	return sb.String()
}

func writeMarket(sb *strings.Builder, item core.Item) {
	printer.Fprintf(sb, "🔹 Price: $%s\n", item.PriceUSD.String())
	printer.Fprintf(sb, "🔹 Liquidity: $%.2f\n", item.LiquidityUSD)
	printer.Fprintf(sb, "🔹 FDV: $%.2f\n", item.FDV)
	printer.Fprintf(sb, "🔹 24h Change: %.2f%%", item.Change24h)
}
