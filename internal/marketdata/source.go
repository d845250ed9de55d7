// Package marketdata assembles the external price and dividend sources
// into one contracts.QuoteSource. Naver supplies historical bars and
// dividend calendars; KIS supplies live quotes, with the websocket tick
// cache consulted before REST.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/marketdata/kis"
	"github.com/wonny/helios/backend/internal/marketdata/naver"
	"github.com/wonny/helios/backend/internal/marketdata/tickcache"
	"github.com/wonny/helios/backend/pkg/config"
	"github.com/wonny/helios/backend/pkg/logger"
	"github.com/wonny/helios/backend/pkg/redis"
)

// Source implements contracts.QuoteSource
// ⭐ SSOT: 시세 소스 조립은 여기서만
type Source struct {
	naver  *naver.Client
	kis    *kis.Client
	ticks  *tickcache.Cache
	cache  *redis.Cache
	logger *logger.Logger

	chunkSize  int
	chunkDelay time.Duration
}

// NewSource creates the composite quote source. ticks may be nil when
// the websocket feed is not running (batch-only processes).
func NewSource(
	cfg *config.Config,
	naverClient *naver.Client,
	kisClient *kis.Client,
	ticks *tickcache.Cache,
	cache *redis.Cache,
	log *logger.Logger,
) *Source {
	return &Source{
		naver:      naverClient,
		kis:        kisClient,
		ticks:      ticks,
		cache:      cache,
		logger:     log,
		chunkSize:  cfg.Engine.FetchChunkSize,
		chunkDelay: cfg.Engine.FetchChunkDelay,
	}
}

// FetchHistoricalPrices fetches daily bars, serving from Redis unless
// the caller asks to bypass (재계산 시 원천 데이터 강제 조회).
func (s *Source) FetchHistoricalPrices(ctx context.Context, ticker string, from, to time.Time, opts contracts.FetchOptions) ([]contracts.PriceBar, error) {
	if opts.Interval != "" && opts.Interval != contracts.IntervalDay {
		return nil, fmt.Errorf("unsupported interval %q", opts.Interval)
	}

	key := redis.BarsKey(ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))

	if !opts.SkipCache {
		var cached []contracts.PriceBar
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("Bar cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	bars, err := s.naver.FetchDailyBars(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", ticker, err)
	}

	if err := s.cache.Set(ctx, key, bars, redis.TTLBars); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Bar cache write failed")
	}

	return bars, nil
}

// FetchLiveQuote returns the freshest live quote available: websocket
// tick cache first, then KIS REST, then the latest Naver daily bar.
func (s *Source) FetchLiveQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	if s.ticks != nil {
		if quote, ok := s.ticks.Get(ticker); ok {
			return quote, nil
		}
	}

	if s.kis != nil && s.kis.Enabled() {
		quote, err := s.kis.GetCurrentQuote(ctx, ticker)
		if err == nil {
			if s.ticks != nil {
				s.ticks.Update(quote)
			}
			return quote, nil
		}
		s.logger.WithError(err).WithField("ticker", ticker).Warn("KIS quote failed, falling back to Naver")
	}

	// 백업 경로: 네이버 최근 일봉 2개로 현재가/전일종가 구성
	to := time.Now()
	from := to.AddDate(0, 0, -10)
	bars, err := s.naver.FetchDailyBars(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("live quote fallback for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price data for %s", ticker)
	}

	last := bars[len(bars)-1]
	quote := &contracts.Quote{
		Ticker:    ticker,
		Price:     last.Close,
		Timestamp: time.Now(),
	}
	if len(bars) >= 2 {
		quote.PrevClose = bars[len(bars)-2].Close
	}
	return quote, nil
}

// FetchDividendCalendar fetches a ticker's dividend calendar with
// Redis caching.
func (s *Source) FetchDividendCalendar(ctx context.Context, ticker string) ([]contracts.Dividend, error) {
	key := redis.DividendKey(ticker)

	var cached []contracts.Dividend
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Dividend cache read failed")
	}
	if hit {
		return cached, nil
	}

	dividends, err := s.naver.FetchDividends(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetch dividends for %s: %w", ticker, err)
	}

	if err := s.cache.Set(ctx, key, dividends, redis.TTLDividend); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Dividend cache write failed")
	}

	return dividends, nil
}

// FetchQuotesBatch fetches live quotes for many tickers in chunks with
// a delay between chunks (외부 API 과부하 방지). Per-ticker failures are
// collected, not fatal; the error map may be consulted by the caller.
func (s *Source) FetchQuotesBatch(ctx context.Context, tickers []string) (map[string]*contracts.Quote, map[string]error) {
	quotes := make(map[string]*contracts.Quote, len(tickers))
	failures := make(map[string]error)

	for i := 0; i < len(tickers); i += s.chunkSize {
		end := i + s.chunkSize
		if end > len(tickers) {
			end = len(tickers)
		}

		for _, ticker := range tickers[i:end] {
			quote, err := s.FetchLiveQuote(ctx, ticker)
			if err != nil {
				failures[ticker] = err
				continue
			}
			quotes[ticker] = quote
		}

		if end < len(tickers) {
			select {
			case <-ctx.Done():
				return quotes, failures
			case <-time.After(s.chunkDelay):
			}
		}
	}

	return quotes, failures
}
