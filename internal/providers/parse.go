package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sawpanic/pinevolume/internal/exchange"
	"github.com/sawpanic/pinevolume/internal/pairs"
)

type parser func(ex exchange.Exchange, body []byte, out pairs.Table) error

var parsers = [exchange.Count]parser{
	exchange.Binance:  parseBinance,
	exchange.Bitfinex: parseBitfinex,
	exchange.Bitstamp: parseBitstamp,
	exchange.Bittrex:  parseBittrex,
	exchange.Coinbase: parseCoinbase,
	exchange.Gemini:   parseGemini,
	exchange.Kraken:   parseKraken,
	exchange.Poloniex: parsePoloniex,
}

// Parse decodes an exchange's pair listing response into a pair table
func Parse(ex exchange.Exchange, body []byte) (pairs.Table, error) {
	if !ex.Valid() {
		return nil, fmt.Errorf("no parser for %s", ex)
	}
	out := pairs.Table{}
	if err := parsers[ex](ex, body, out); err != nil {
		return nil, &ParseError{Exchange: ex, Err: err}
	}
	return out, nil
}

// add normalizes symbols to upper case and skips incomplete pairs
func add(out pairs.Table, ex exchange.Exchange, base, quote string) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return
	}
	out.Add(ex, base, quote)
}

func parseBinance(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var info BinanceExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return err
	}
	if info.Symbols == nil {
		return fmt.Errorf("missing symbols")
	}
	for _, s := range info.Symbols {
		if s.Status == "HALT" || s.Status == "BREAK" || !s.IsSpotTradingAllowed {
			continue
		}
		add(out, ex, s.BaseAsset, s.QuoteAsset)
	}
	return nil
}

// Bitfinex tickers are arrays whose first element is the symbol, e.g. "tBTCUSD" or
// "tTESTBTC:TESTUSD". Funding tickers ("fUSD") are skipped. Without a colon the base is three
// characters and the quote at most six.
func parseBitfinex(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var tickers [][]json.RawMessage
	if err := json.Unmarshal(body, &tickers); err != nil {
		return err
	}
	for i, ticker := range tickers {
		if len(ticker) == 0 {
			return fmt.Errorf("ticker %d is empty", i)
		}
		var symbol string
		if err := json.Unmarshal(ticker[0], &symbol); err != nil {
			return fmt.Errorf("ticker %d symbol: %w", i, err)
		}
		if !strings.HasPrefix(symbol, "t") {
			continue
		}
		symbol = symbol[1:]
		if base, quote, ok := strings.Cut(symbol, ":"); ok {
			add(out, ex, base, quote)
			continue
		}
		if len(symbol) < 6 {
			continue
		}
		quote := symbol[3:]
		if len(quote) > 6 {
			quote = quote[:6]
		}
		add(out, ex, symbol[:3], quote)
	}
	return nil
}

func parseBitstamp(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var infos []BitstampPairInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return err
	}
	for _, info := range infos {
		base, quote, ok := strings.Cut(info.Name, "/")
		if !ok {
			continue
		}
		add(out, ex, base, quote)
	}
	return nil
}

func parseBittrex(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var resp BittrexMarketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if resp.Result == nil {
		return fmt.Errorf("missing result: %s", resp.Message)
	}
	for _, m := range resp.Result {
		if !m.IsActive || m.Notice != nil {
			continue
		}
		add(out, ex, m.MarketCurrency, m.BaseCurrency)
	}
	return nil
}

func parseCoinbase(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var products []CoinbaseProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return err
	}
	for _, p := range products {
		add(out, ex, p.BaseCurrency, p.QuoteCurrency)
	}
	return nil
}

// Gemini symbols are lower-case three-letter base followed by the quote, e.g. "btcusd"
func parseGemini(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var symbols []string
	if err := json.Unmarshal(body, &symbols); err != nil {
		return err
	}
	for _, symbol := range symbols {
		if len(symbol) < 6 {
			continue
		}
		quote := symbol[3:]
		if len(quote) > 5 {
			quote = quote[:5]
		}
		add(out, ex, symbol[:3], quote)
	}
	return nil
}

func parseKraken(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var resp KrakenAssetPairsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return err
	}
	if len(resp.Error) > 0 {
		return fmt.Errorf("kraken API error: %v", resp.Error)
	}
	for _, pair := range resp.Result {
		base, quote, _ := strings.Cut(pair.WSName, "/")
		add(out, ex, base, quote)
	}
	return nil
}

// Poloniex keys tickers by "QUOTE_BASE", e.g. "BTC_ETH"
func parsePoloniex(ex exchange.Exchange, body []byte, out pairs.Table) error {
	var tickers map[string]json.RawMessage
	if err := json.Unmarshal(body, &tickers); err != nil {
		return err
	}
	for key := range tickers {
		quote, base, ok := strings.Cut(key, "_")
		if !ok {
			continue
		}
		add(out, ex, base, quote)
	}
	return nil
}
