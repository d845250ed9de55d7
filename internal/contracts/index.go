package contracts

import (
	"fmt"
	"time"
)

// ⭐ SSOT: 지수 정의와 방법론 타입은 여기서만

// WeightingRule decides how constituent weights are assigned on a rebalance.
// 방법론마다 선택 (전역 기본값 없음)
type WeightingRule string

const (
	// WeightingEqual assigns 1/N to every constituent.
	WeightingEqual WeightingRule = "EQUAL"
	// WeightingScoreProportional assigns score_i / sum(scores).
	WeightingScoreProportional WeightingRule = "SCORE_PROPORTIONAL"
)

// FilterKind is the closed set of screening filter variants.
type FilterKind string

const (
	// FilterMaxRatio excludes candidates whose fundamental field exceeds Value.
	FilterMaxRatio FilterKind = "MAX_RATIO"
	// FilterMinRatio excludes candidates whose fundamental field is below Value.
	FilterMinRatio FilterKind = "MIN_RATIO"
	// FilterMinScore excludes candidates whose quality score is below Value.
	FilterMinScore FilterKind = "MIN_SCORE"
	// FilterMinTradedValue excludes illiquid candidates (일평균 거래대금, 원).
	FilterMinTradedValue FilterKind = "MIN_TRADED_VALUE"
)

// FilterField names the fundamental a ratio filter applies to.
type FilterField string

const (
	FieldPER       FilterField = "PER"
	FieldPBR       FilterField = "PBR"
	FieldROE       FilterField = "ROE"
	FieldDebtRatio FilterField = "DEBT_RATIO"
)

// FilterRule is one screening condition. Rules combine as a conjunction.
type FilterRule struct {
	Kind  FilterKind  `json:"kind"`
	Field FilterField `json:"field,omitempty"` // ratio 필터에서만 사용
	Value float64     `json:"value"`
}

// Validate checks the rule exhaustively. Invalid rules are rejected at
// index creation time, never at screening time.
func (r FilterRule) Validate() error {
	switch r.Kind {
	case FilterMaxRatio, FilterMinRatio:
		switch r.Field {
		case FieldPER, FieldPBR, FieldROE, FieldDebtRatio:
		default:
			return fmt.Errorf("filter %s: unknown field %q", r.Kind, r.Field)
		}
	case FilterMinScore, FilterMinTradedValue:
		if r.Field != "" {
			return fmt.Errorf("filter %s: field must be empty, got %q", r.Kind, r.Field)
		}
		if r.Value < 0 {
			return fmt.Errorf("filter %s: value must be >= 0, got %v", r.Kind, r.Value)
		}
	default:
		return fmt.Errorf("unknown filter kind %q", r.Kind)
	}
	return nil
}

// SortKey orders screening survivors before the constituent cap is applied.
type SortKey string

const (
	SortPERAsc    SortKey = "PER_ASC"    // 저평가 우선
	SortPBRAsc    SortKey = "PBR_ASC"
	SortScoreDesc SortKey = "SCORE_DESC" // 퀄리티 우선
)

// Methodology is an index's rules-based selection configuration.
type Methodology struct {
	Filters         []FilterRule  `json:"filters"`
	SortKey         SortKey       `json:"sort_key"`
	MaxConstituents int           `json:"max_constituents"`
	Weighting       WeightingRule `json:"weighting"`
}

// Validate checks the full methodology at index creation time.
func (m Methodology) Validate() error {
	for i, f := range m.Filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filters[%d]: %w", i, err)
		}
	}

	switch m.SortKey {
	case SortPERAsc, SortPBRAsc, SortScoreDesc:
	default:
		return fmt.Errorf("unknown sort key %q", m.SortKey)
	}

	if m.MaxConstituents <= 0 {
		return fmt.Errorf("max_constituents must be positive, got %d", m.MaxConstituents)
	}

	// 가중 방식은 명시 필수 (기본값을 가정하지 않음)
	switch m.Weighting {
	case WeightingEqual, WeightingScoreProportional:
	default:
		return fmt.Errorf("weighting must be set to %s or %s", WeightingEqual, WeightingScoreProportional)
	}

	return nil
}

// IndexDefinition is a synthetic index. Identity fields are immutable
// after creation; the methodology changes only via explicit admin update.
type IndexDefinition struct {
	ID          int64       `json:"id"`
	Symbol      string      `json:"symbol"` // unique ticker-like symbol (e.g. "HLV10")
	Name        string      `json:"name"`
	Methodology Methodology `json:"methodology"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Validate checks a definition before persistence.
func (d *IndexDefinition) Validate() error {
	if d.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	return d.Methodology.Validate()
}

// Candidate is one screening survivor, carrying the score used for
// ranking and score-proportional weighting.
type Candidate struct {
	Ticker string  `json:"ticker"`
	Score  float64 `json:"score"`
}

// Fundamentals is the stored per-ticker fundamentals snapshot the
// screener reads. 수집 파이프라인이 주기적으로 갱신.
type Fundamentals struct {
	Ticker         string    `json:"ticker"`
	Name           string    `json:"name"`
	PER            float64   `json:"per"`
	PBR            float64   `json:"pbr"`
	ROE            float64   `json:"roe"`
	DebtRatio      float64   `json:"debt_ratio"`
	QualityScore   float64   `json:"quality_score"`
	AvgTradedValue float64   `json:"avg_traded_value"` // 원
	UpdatedAt      time.Time `json:"updated_at"`
}

// Field returns the named ratio field value.
func (f *Fundamentals) Field(field FilterField) float64 {
	switch field {
	case FieldPER:
		return f.PER
	case FieldPBR:
		return f.PBR
	case FieldROE:
		return f.ROE
	case FieldDebtRatio:
		return f.DebtRatio
	default:
		return 0
	}
}
