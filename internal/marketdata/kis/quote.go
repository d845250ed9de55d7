package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
)

// parseFloat parses KIS numeric strings; empty or malformed returns 0
func parseFloat(s string) float64 {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

// currentPriceResponse is the inquire-price response envelope
type currentPriceResponse struct {
	RtCd   string `json:"rt_cd"` // "0" = 성공
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		CurrentPrice string `json:"stck_prpr"`      // 현재가
		PrevClose    string `json:"stck_sdpr"`      // 기준가 (전일 종가)
		Change       string `json:"prdy_vrss"`      // 전일 대비
		ChangeRate   string `json:"prdy_ctrt"`      // 전일 대비율
		Volume       string `json:"acml_vol"`       // 누적 거래량
	} `json:"output"`
}

// GetCurrentQuote gets the live quote for a stock
// ⭐ SSOT: KIS 현재가 조회는 이 함수에서만
func (c *Client) GetCurrentQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	path := "/uapi/domestic-stock/v1/quotations/inquire-price"
	trID := "FHKST01010100" // 국내주식 현재가 시세

	params := fmt.Sprintf("?fid_cond_mrkt_div_code=J&fid_input_iscd=%s", ticker)

	resp, err := c.request(ctx, http.MethodGet, path+params, trID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("quote request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}

	var priceResp currentPriceResponse
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	if priceResp.RtCd != "0" {
		return nil, fmt.Errorf("KIS error %s: %s", priceResp.MsgCd, priceResp.Msg1)
	}

	price := parseFloat(priceResp.Output.CurrentPrice)
	if price <= 0 {
		return nil, fmt.Errorf("invalid price %q for %s", priceResp.Output.CurrentPrice, ticker)
	}

	return &contracts.Quote{
		Ticker:    ticker,
		Price:     price,
		PrevClose: parseFloat(priceResp.Output.PrevClose),
		Timestamp: time.Now(),
	}, nil
}
