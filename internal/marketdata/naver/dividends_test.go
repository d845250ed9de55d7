package naver

import (
	"testing"
	"time"
)

const dividendHTML = `
<html><body>
<table class="tb_type1">
<thead><tr><th>배당락일</th><th>주당배당금</th></tr></thead>
<tbody>
<tr><td>2025.12.29</td><td>1,416</td></tr>
<tr><td>2025.06.27</td><td>361원</td></tr>
<tr><td>예정</td><td>-</td></tr>
<tr><td>2024.12.27</td><td>0</td></tr>
<tr><td colspan="2">데이터가 없습니다</td></tr>
</tbody>
</table>
</body></html>`

func TestParseDividendTable(t *testing.T) {
	dividends, err := parseDividendTable("005930", dividendHTML)
	if err != nil {
		t.Fatalf("parseDividendTable() error = %v", err)
	}

	// 파싱 불가/0원 행은 스킵.
	if len(dividends) != 2 {
		t.Fatalf("parseDividendTable() got %d dividends, want 2", len(dividends))
	}

	first := dividends[0]
	if first.Ticker != "005930" {
		t.Errorf("Ticker = %q, want 005930", first.Ticker)
	}
	wantDate := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC)
	if !first.ExDate.Equal(wantDate) {
		t.Errorf("ExDate = %v, want %v", first.ExDate, wantDate)
	}
	if first.Amount != 1416 {
		t.Errorf("Amount = %v, want 1416", first.Amount)
	}

	if dividends[1].Amount != 361 {
		t.Errorf("Amount = %v, want 361", dividends[1].Amount)
	}
}

func TestParseDividendTable_NoTable(t *testing.T) {
	dividends, err := parseDividendTable("005930", `<html><body><p>없음</p></body></html>`)
	if err != nil {
		t.Fatalf("parseDividendTable() error = %v", err)
	}
	if len(dividends) != 0 {
		t.Errorf("parseDividendTable() got %d dividends, want 0", len(dividends))
	}
}

func TestParseKoreanDate(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025.12.29", false},
		{"2025-12-29", false},
		{"예정", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parseKoreanDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseKoreanDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,416", 1416},
		{"361원", 361},
		{"0", 0},
		{"-", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseAmount(tt.in); got != tt.want {
				t.Errorf("parseAmount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
