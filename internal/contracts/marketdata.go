package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 시세/배당 소스 인터페이스는 여기서만 정의

// Interval is the bar interval of a historical price request.
type Interval string

const (
	IntervalDay Interval = "day"
)

// PriceBar is one OHLCV record.
type PriceBar struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is one live quote.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	PrevClose float64   `json:"prev_close"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchOptions tunes a historical price request.
type FetchOptions struct {
	Interval  Interval
	SkipCache bool // true면 캐시 우회, 항상 원천 조회
}

// QuoteSource supplies historical closes, live quotes, and dividend
// calendars per ticker. Dates are calendar dates in the exchange's
// local timezone; implementations must not shift them through UTC.
// Empty results are returned as empty slices, not errors.
type QuoteSource interface {
	FetchHistoricalPrices(ctx context.Context, ticker string, from, to time.Time, opts FetchOptions) ([]PriceBar, error)
	FetchLiveQuote(ctx context.Context, ticker string) (*Quote, error)
	// FetchQuotesBatch fetches live quotes for many tickers at once.
	// Per-ticker failures land in the error map, never abort the batch.
	FetchQuotesBatch(ctx context.Context, tickers []string) (map[string]*Quote, map[string]error)
	FetchDividendCalendar(ctx context.Context, ticker string) ([]Dividend, error)
}
