package prune

import (
	"github.com/sawpanic/pinevolume/internal/pairs"
	"github.com/sawpanic/pinevolume/internal/rules"
)

// Deduplicate applies difference pruning across exchanges: every base asset listed on a
// primary exchange, unless crypto-pairing exempt, is removed with all of its quotes from the
// primary's secondaries. Exchanges missing from all are skipped. A new set of tables is
// returned; all is not modified.
func Deduplicate(all pairs.Tables, rs *rules.Set) pairs.Tables {
	out := all.Clone()
	for _, rule := range rs.DifferencePruning {
		primary, ok := out[rule.Primary]
		if !ok {
			continue
		}
		for _, secondary := range rule.Secondaries {
			target, ok := out[secondary]
			if !ok {
				continue
			}
			for base := range primary {
				if rs.IsCryptoExemptBase(base) {
					continue
				}
				delete(target, base)
			}
		}
	}
	return out
}
