package exchange

import (
	"fmt"
	"strings"
)

// Exchange identifies one of the supported venues
type Exchange int

const (
	Binance Exchange = iota
	Bitfinex
	Bitstamp
	Bittrex
	Coinbase
	Gemini
	Kraken
	Poloniex

	// Count is the number of supported exchanges; arrays sized by it must cover every venue
	Count = iota
)

var names = [Count]string{
	Binance:  "binance",
	Bitfinex: "bitfinex",
	Bitstamp: "bitstamp",
	Bittrex:  "bittrex",
	Coinbase: "coinbase",
	Gemini:   "gemini",
	Kraken:   "kraken",
	Poloniex: "poloniex",
}

// All returns every supported exchange in canonical order
func All() []Exchange {
	all := make([]Exchange, Count)
	for i := range all {
		all[i] = Exchange(i)
	}
	return all
}

// Valid reports whether e is one of the supported exchanges
func (e Exchange) Valid() bool {
	return e >= 0 && int(e) < Count
}

// String returns the lower-case exchange name used in config and generated variable names
func (e Exchange) String() string {
	if !e.Valid() {
		return fmt.Sprintf("exchange(%d)", int(e))
	}
	return names[e]
}

// Title returns the capitalized exchange name used in log output
func (e Exchange) Title() string {
	name := e.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// Prefix returns the TradingView ticker prefix, e.g. "BINANCE:"
func (e Exchange) Prefix() string {
	return strings.ToUpper(e.String()) + ":"
}

// Parse resolves an exchange by name, case-insensitively
func Parse(name string) (Exchange, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == lower {
			return Exchange(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported exchange: %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (e Exchange) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid exchange %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so exchanges can key YAML maps
func (e *Exchange) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
