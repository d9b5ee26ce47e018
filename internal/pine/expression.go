// Package pine generates the Pine Script that sums volume across exchanges.
package pine

import (
	"strings"

	"github.com/sawpanic/pinevolume/internal/pairs"
	"github.com/sawpanic/pinevolume/internal/rules"
)

// Sentinel is the ticker id an exchange resolves to when it does not list the chart's ticker
const Sentinel = "GOLD"

// AssetSet is a set of asset symbols
type AssetSet map[string]struct{}

// Has reports whether symbol is a member
func (s AssetSet) Has(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// XBTBaseAssets collects every base asset quoted in XBT on any exchange.
// It must run on the final tables, before any expression is generated.
func XBTBaseAssets(all pairs.Tables) AssetSet {
	out := AssetSet{}
	for _, t := range all {
		for base, quotes := range t {
			if _, ok := quotes["XBT"]; ok {
				out[base] = struct{}{}
			}
		}
	}
	return out
}

func isBitcoin(symbol string) bool {
	return symbol == "BTC" || symbol == "XBT"
}

func otherBitcoin(symbol string) string {
	if symbol == "BTC" {
		return "XBT"
	}
	return "BTC"
}

func clause(ticker string) string {
	return ` or syminfo.ticker == "` + ticker + `"`
}

// VariantsFor returns the extra OR-equalities that let a pair match the chart's ticker under
// alternate names: BTC/XBT swaps and renamed assets from the rule set's ticker variations.
func VariantsFor(base, quote string, xbt AssetSet, rs *rules.Set) string {
	if isBitcoin(base) {
		return clause(otherBitcoin(base) + quote)
	}

	var b strings.Builder
	baseVariant, _ := rs.Variation(base)
	quoteVariant := otherBitcoin(quote)
	hasXBTPair := xbt.Has(base) || (baseVariant != "" && xbt.Has(baseVariant))
	swapQuote := isBitcoin(quote) && hasXBTPair

	if swapQuote {
		b.WriteString(clause(base + quoteVariant))
	}
	if baseVariant != "" {
		b.WriteString(clause(baseVariant + quote))
		if swapQuote {
			b.WriteString(clause(baseVariant + quoteVariant))
		}
	}
	return b.String()
}

// TickerExpression builds the chained ternary resolving the chart's ticker to this exchange's
// ticker id, falling back to Sentinel. It also returns the number of branches emitted.
func TickerExpression(t pairs.Table, xbt AssetSet, rs *rules.Set) (string, int) {
	var b strings.Builder
	branches := 0
	for _, p := range t.Sorted() {
		b.WriteString(`syminfo.ticker == "`)
		b.WriteString(p.Ticker())
		b.WriteString(`"`)
		b.WriteString(VariantsFor(p.Base, p.Quote, xbt, rs))
		b.WriteString(` ? "`)
		b.WriteString(p.Symbol)
		b.WriteString(`" : `)
		branches++
	}
	b.WriteString(`"` + Sentinel + `"`)
	return b.String(), branches
}
