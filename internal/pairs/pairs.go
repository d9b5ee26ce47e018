package pairs

import (
	"sort"

	"github.com/sawpanic/pinevolume/internal/exchange"
)

// Pair is one tradable market on an exchange
type Pair struct {
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Symbol string `json:"symbol"` // TradingView ticker id, e.g. "BINANCE:ADABTC"
}

// NewPair builds a pair whose symbol is the exchange prefix followed by base and quote
func NewPair(ex exchange.Exchange, base, quote string) Pair {
	return Pair{
		Base:   base,
		Quote:  quote,
		Symbol: ex.Prefix() + base + quote,
	}
}

// Ticker returns the bare base+quote ticker as displayed on a chart
func (p Pair) Ticker() string {
	return p.Base + p.Quote
}

// Table maps base asset to quote asset to pair for a single exchange
type Table map[string]map[string]Pair

// Add inserts the pair for base/quote on ex, replacing any existing entry
func (t Table) Add(ex exchange.Exchange, base, quote string) {
	t.Put(NewPair(ex, base, quote))
}

// Put inserts p keyed by its base and quote
func (t Table) Put(p Pair) {
	quotes, ok := t[p.Base]
	if !ok {
		quotes = make(map[string]Pair)
		t[p.Base] = quotes
	}
	quotes[p.Quote] = p
}

// Has reports whether base/quote is listed
func (t Table) Has(base, quote string) bool {
	_, ok := t[base][quote]
	return ok
}

// Len returns the number of base/quote entries
func (t Table) Len() int {
	n := 0
	for _, quotes := range t {
		n += len(quotes)
	}
	return n
}

// Bases returns base assets in ascending lexicographic order
func (t Table) Bases() []string {
	bases := make([]string, 0, len(t))
	for base := range t {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	return bases
}

// Quotes returns the quote assets listed against base in ascending order
func (t Table) Quotes(base string) []string {
	quotes := make([]string, 0, len(t[base]))
	for quote := range t[base] {
		quotes = append(quotes, quote)
	}
	sort.Strings(quotes)
	return quotes
}

// Sorted returns every pair ordered by base then quote
func (t Table) Sorted() []Pair {
	out := make([]Pair, 0, t.Len())
	for _, base := range t.Bases() {
		for _, quote := range t.Quotes(base) {
			out = append(out, t[base][quote])
		}
	}
	return out
}

// Clone returns a deep copy of t
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for base, quotes := range t {
		copied := make(map[string]Pair, len(quotes))
		for quote, p := range quotes {
			copied[quote] = p
		}
		out[base] = copied
	}
	return out
}

// Tables holds the pair table of every exchange that took part in a run
type Tables map[exchange.Exchange]Table

// Len returns the number of base/quote entries across all exchanges
func (ts Tables) Len() int {
	n := 0
	for _, t := range ts {
		n += t.Len()
	}
	return n
}

// Clone returns a deep copy of ts
func (ts Tables) Clone() Tables {
	out := make(Tables, len(ts))
	for ex, t := range ts {
		out[ex] = t.Clone()
	}
	return out
}

// Ordered returns the exchanges present in ts in canonical order
func (ts Tables) Ordered() []exchange.Exchange {
	var out []exchange.Exchange
	for _, ex := range exchange.All() {
		if _, ok := ts[ex]; ok {
			out = append(out, ex)
		}
	}
	return out
}
