package kis

import "testing"

func TestParseTickMessage(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantNil   bool
		wantPrice float64
	}{
		{
			name:      "valid tick frame",
			message:   "0|H0STCNT0|001|005930^093012^72500^2^100",
			wantPrice: 72500,
		},
		{
			name:    "json control frame",
			message: `{"header":{"tr_id":"PINGPONG"}}`,
			wantNil: true,
		},
		{
			name:    "wrong tr_id",
			message: "0|H0STASP0|001|005930^093012^72500",
			wantNil: true,
		},
		{
			name:    "too few parts",
			message: "0|H0STCNT0",
			wantNil: true,
		},
		{
			name:    "too few fields",
			message: "0|H0STCNT0|001|005930^093012",
			wantNil: true,
		},
		{
			name:    "non-numeric price",
			message: "0|H0STCNT0|001|005930^093012^abc",
			wantNil: true,
		},
		{
			name:    "zero price",
			message: "0|H0STCNT0|001|005930^093012^0",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := parseTickMessage(tt.message)
			if tt.wantNil {
				if quote != nil {
					t.Errorf("parseTickMessage() = %+v, want nil", quote)
				}
				return
			}

			if quote == nil {
				t.Fatal("parseTickMessage() = nil, want a quote")
			}
			if quote.Ticker != "005930" {
				t.Errorf("Ticker = %q, want 005930", quote.Ticker)
			}
			if quote.Price != tt.wantPrice {
				t.Errorf("Price = %v, want %v", quote.Price, tt.wantPrice)
			}
			if quote.Timestamp.IsZero() {
				t.Error("Timestamp is zero")
			}
		})
	}
}
