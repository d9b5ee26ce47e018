package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pinevolume/internal/exchange"
	"github.com/sawpanic/pinevolume/internal/pairs"
)

func symbols(t pairs.Table) []string {
	var out []string
	for _, p := range t.Sorted() {
		out = append(out, p.Symbol)
	}
	return out
}

func TestParse_Exchanges(t *testing.T) {
	tests := []struct {
		name string
		ex   exchange.Exchange
		body string
		want []string
	}{
		{
			name: "binance",
			ex:   exchange.Binance,
			body: `{"symbols": [
				{"symbol": "ETHBTC", "status": "TRADING", "baseAsset": "ETH", "quoteAsset": "BTC", "isSpotTradingAllowed": true},
				{"symbol": "ADABTC", "status": "BREAK", "baseAsset": "ADA", "quoteAsset": "BTC", "isSpotTradingAllowed": true},
				{"symbol": "NEOBTC", "status": "HALT", "baseAsset": "NEO", "quoteAsset": "BTC", "isSpotTradingAllowed": true},
				{"symbol": "LTCBTC", "status": "TRADING", "baseAsset": "LTC", "quoteAsset": "BTC", "isSpotTradingAllowed": false},
				{"symbol": "XRPUSDT", "status": "TRADING", "baseAsset": "XRP", "quoteAsset": "USDT", "isSpotTradingAllowed": true}
			]}`,
			want: []string{"BINANCE:ETHBTC", "BINANCE:XRPUSDT"},
		},
		{
			name: "bitfinex",
			ex:   exchange.Bitfinex,
			body: `[["tBTCUSD", 1, 2.5], ["tETHBTC", 3], ["fUSD", 0.1], ["tTESTBTC:TESTUSD", 1], ["tXY", 1], ["tABCDEFGHIJ", 1]]`,
			want: []string{"BITFINEX:ABCDEFGHI", "BITFINEX:BTCUSD", "BITFINEX:ETHBTC", "BITFINEX:TESTBTCTESTUSD"},
		},
		{
			name: "bitstamp",
			ex:   exchange.Bitstamp,
			body: `[{"name": "BTC/USD", "url_symbol": "btcusd"}, {"name": "XRP/BTC"}, {"name": "broken"}]`,
			want: []string{"BITSTAMP:BTCUSD", "BITSTAMP:XRPBTC"},
		},
		{
			name: "bittrex",
			ex:   exchange.Bittrex,
			body: `{"success": true, "result": [
				{"MarketCurrency": "LTC", "BaseCurrency": "BTC", "IsActive": true, "Notice": null},
				{"MarketCurrency": "OMG", "BaseCurrency": "BTC", "IsActive": false, "Notice": null},
				{"MarketCurrency": "BCC", "BaseCurrency": "BTC", "IsActive": true, "Notice": "delisting"}
			]}`,
			want: []string{"BITTREX:LTCBTC"},
		},
		{
			name: "coinbase",
			ex:   exchange.Coinbase,
			body: `[{"id": "BTC-USD", "base_currency": "BTC", "quote_currency": "USD"}, {"id": "ETH-EUR", "base_currency": "ETH", "quote_currency": "EUR"}]`,
			want: []string{"COINBASE:BTCUSD", "COINBASE:ETHEUR"},
		},
		{
			name: "gemini",
			ex:   exchange.Gemini,
			body: `["btcusd", "ethbtc", "zecusd", "bad"]`,
			want: []string{"GEMINI:BTCUSD", "GEMINI:ETHBTC", "GEMINI:ZECUSD"},
		},
		{
			name: "kraken",
			ex:   exchange.Kraken,
			body: `{"error": [], "result": {
				"XXBTZUSD": {"altname": "XBTUSD", "wsname": "XBT/USD"},
				"ADAXBT": {"altname": "ADAXBT", "wsname": "ADA/XBT"},
				"XETHZUSD.d": {"altname": "ETHUSD.d"}
			}}`,
			want: []string{"KRAKEN:ADAXBT", "KRAKEN:XBTUSD"},
		},
		{
			name: "poloniex",
			ex:   exchange.Poloniex,
			body: `{"BTC_ETH": {"last": "0.02"}, "USDT_BTC": {"last": "9000"}, "weird": {}}`,
			want: []string{"POLONIEX:BTCUSDT", "POLONIEX:ETHBTC"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(tt.ex, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, symbols(table))
		})
	}
}

func TestParse_KeysByBaseThenQuote(t *testing.T) {
	table, err := Parse(exchange.Poloniex, []byte(`{"BTC_ETH": {}, "USDT_ETH": {}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH"}, table.Bases())
	assert.Equal(t, []string{"BTC", "USDT"}, table.Quotes("ETH"))
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ex   exchange.Exchange
		body string
	}{
		{name: "binance_not_json", ex: exchange.Binance, body: `<html>`},
		{name: "binance_wrong_shape", ex: exchange.Binance, body: `{"code": -1121}`},
		{name: "bitfinex_object", ex: exchange.Bitfinex, body: `{"error": "ratelimit"}`},
		{name: "bitfinex_empty_ticker", ex: exchange.Bitfinex, body: `[[]]`},
		{name: "bittrex_failure", ex: exchange.Bittrex, body: `{"success": false, "message": "INVALID"}`},
		{name: "gemini_object", ex: exchange.Gemini, body: `{"symbols": []}`},
		{name: "kraken_error", ex: exchange.Kraken, body: `{"error": ["EGeneral:Too many requests"]}`},
		{name: "poloniex_array", ex: exchange.Poloniex, body: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.ex, []byte(tt.body))
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.ex, parseErr.Exchange)
		})
	}
}

func TestParse_UnknownExchange(t *testing.T) {
	_, err := Parse(exchange.Exchange(99), []byte(`[]`))
	assert.Error(t, err)
}
