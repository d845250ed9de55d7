package naver

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/helios/backend/internal/contracts"
)

// FetchDividends scrapes the per-stock dividend history table from
// Naver Finance. Rows carry (배당락일, 주당배당금); rows with missing
// or unparseable cells are skipped, never fatal.
// ⭐ SSOT: 배당 이력 스크래핑은 이 함수에서만
func (c *Client) FetchDividends(ctx context.Context, ticker string) ([]contracts.Dividend, error) {
	params := url.Values{}
	params.Set("code", ticker)

	html, err := c.fetchHTML(ctx, "/item/dividend.naver", params)
	if err != nil {
		return nil, fmt.Errorf("fetch dividend page: %w", err)
	}

	dividends, err := parseDividendTable(ticker, html)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(dividends),
	}).Debug("Fetched dividend history")
	return dividends, nil
}

// parseDividendTable extracts (ex-date, amount) rows from the dividend
// history table.
func parseDividendTable(ticker, html string) ([]contracts.Dividend, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var dividends []contracts.Dividend
	doc.Find("table.tb_type1 tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		exDate, err := parseKoreanDate(strings.TrimSpace(cells.Eq(0).Text()))
		if err != nil {
			return
		}

		amount := parseAmount(strings.TrimSpace(cells.Eq(1).Text()))
		if amount <= 0 {
			return
		}

		dividends = append(dividends, contracts.Dividend{
			Ticker: ticker,
			ExDate: exDate,
			Amount: amount,
		})
	})

	return dividends, nil
}

// parseKoreanDate parses "2025.12.29" style dates
func parseKoreanDate(s string) (time.Time, error) {
	s = strings.ReplaceAll(s, ".", "-")
	return time.Parse("2006-01-02", s)
}

// parseAmount parses "1,416" style comma-grouped amounts
func parseAmount(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "원")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
