package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
)

// FetchDailyBars fetches daily OHLCV bars from the Naver Finance chart API
// ⭐ SSOT: Naver 일봉 API 호출은 이 함수에서만
func (c *Client) FetchDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceBar, error) {
	fromStr := strings.ReplaceAll(from.Format("2006-01-02"), "-", "")
	toStr := strings.ReplaceAll(to.Format("2006-01-02"), "-", "")

	fullURL := fmt.Sprintf(
		"%s/siseJson.naver?symbol=%s&requestType=1&startTime=%s&endTime=%s&timeframe=day",
		c.chartURL, ticker, fromStr, toStr,
	)

	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		"Referer":    "https://finance.naver.com/",
	}

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, headers)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}

	bars, err := parseChartResponse(ticker, string(body))
	if err != nil {
		return nil, fmt.Errorf("parse response failed: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(bars),
	}).Debug("Fetched daily bars")
	return bars, nil
}

// parseChartResponse parses the chart API body. Naver returns a
// JS-flavored array literal with single quotes; normalize then parse,
// with a regex fallback for malformed payloads.
func parseChartResponse(ticker, body string) ([]contracts.PriceBar, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return parseChartJSON(ticker, rawData)
	}

	return parseChartRegex(ticker, body)
}

func parseChartJSON(ticker string, rawData [][]interface{}) ([]contracts.PriceBar, error) {
	var bars []contracts.PriceBar
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue // 헤더 행 스킵
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		dateStr = strings.Trim(dateStr, "\"")
		if len(dateStr) == 8 {
			dateStr = dateStr[:4] + "-" + dateStr[4:6] + "-" + dateStr[6:8]
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		bars = append(bars, contracts.PriceBar{
			Ticker: ticker,
			Date:   date,
			Open:   toFloat64(row[1]),
			High:   toFloat64(row[2]),
			Low:    toFloat64(row[3]),
			Close:  toFloat64(row[4]),
			Volume: int64(toFloat64(row[5])),
		})
	}
	return bars, nil
}

var chartRowRe = regexp.MustCompile(`\["(\d{8})",\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+),\s*(\d+)\]`)

func parseChartRegex(ticker, body string) ([]contracts.PriceBar, error) {
	matches := chartRowRe.FindAllStringSubmatch(body, -1)

	var bars []contracts.PriceBar
	for _, match := range matches {
		if len(match) < 7 {
			continue
		}

		dateStr := match[1][:4] + "-" + match[1][4:6] + "-" + match[1][6:8]
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		open, _ := strconv.ParseFloat(match[2], 64)
		high, _ := strconv.ParseFloat(match[3], 64)
		low, _ := strconv.ParseFloat(match[4], 64)
		closePrice, _ := strconv.ParseFloat(match[5], 64)
		volume, _ := strconv.ParseInt(match[6], 10, 64)

		bars = append(bars, contracts.PriceBar{
			Ticker: ticker,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}
	return bars, nil
}

// toFloat64 converts various JSON scalar types to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		n, _ := strconv.ParseFloat(val, 64)
		return n
	default:
		return 0
	}
}
