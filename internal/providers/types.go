package providers

// BinanceExchangeInfo is the /api/v1/exchangeInfo response
type BinanceExchangeInfo struct {
	Symbols []BinanceSymbol `json:"symbols"`
}

// BinanceSymbol describes one Binance market
type BinanceSymbol struct {
	Symbol               string `json:"symbol"`
	Status               string `json:"status"`
	BaseAsset            string `json:"baseAsset"`
	QuoteAsset           string `json:"quoteAsset"`
	IsSpotTradingAllowed bool   `json:"isSpotTradingAllowed"`
}

// BitstampPairInfo is one entry of the trading-pairs-info response
type BitstampPairInfo struct {
	Name    string `json:"name"` // "BTC/USD"
	URLName string `json:"url_symbol"`
	Trading string `json:"trading"`
}

// BittrexMarketsResponse is the public/getmarkets response
type BittrexMarketsResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  []BittrexMarket `json:"result"`
}

// BittrexMarket describes one Bittrex market; BaseCurrency is the quote asset
type BittrexMarket struct {
	MarketCurrency string  `json:"MarketCurrency"`
	BaseCurrency   string  `json:"BaseCurrency"`
	MarketName     string  `json:"MarketName"`
	IsActive       bool    `json:"IsActive"`
	Notice         *string `json:"Notice"`
}

// CoinbaseProduct is one entry of the /products response
type CoinbaseProduct struct {
	ID            string `json:"id"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
}

// KrakenAssetPairsResponse is the /0/public/AssetPairs response
type KrakenAssetPairsResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]KrakenAssetPair `json:"result"`
}

// KrakenAssetPair describes one Kraken pair; WSName is "BASE/QUOTE"
type KrakenAssetPair struct {
	Altname string `json:"altname"`
	WSName  string `json:"wsname"`
	Base    string `json:"base"`
	Quote   string `json:"quote"`
}
