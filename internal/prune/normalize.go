// Package prune removes pairs that should not contribute to the aggregate volume script.
package prune

import (
	"github.com/sawpanic/pinevolume/internal/pairs"
	"github.com/sawpanic/pinevolume/internal/rules"
)

// Normalize returns the pairs of one exchange that survive quote-asset pruning.
// Pairs quoted in anything outside the crypto and fiat whitelists are always dropped;
// whitelisted pairs are dropped only when prefs enables pruning for their quote kind and the
// base asset is not exempt. The input table is left untouched.
func Normalize(t pairs.Table, prefs rules.Preferences, rs *rules.Set) pairs.Table {
	out := make(pairs.Table, len(t))
	for base, quotes := range t {
		for quote, p := range quotes {
			if keep(base, quote, prefs, rs) {
				out.Put(p)
			}
		}
	}
	return out
}

func keep(base, quote string, prefs rules.Preferences, rs *rules.Set) bool {
	switch {
	case rs.IsCryptoQuote(quote):
		return !prefs.PruneCryptoQuotePairs || rs.IsCryptoExemptBase(base)
	case rs.IsFiatQuote(quote):
		return !prefs.PruneFiatQuotePairs || rs.IsFiatExemptBase(base)
	default:
		return false
	}
}
