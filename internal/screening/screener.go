// Package screening applies an index methodology's filter rules to the
// stored fundamentals universe and produces the ranked candidate list.
package screening

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/logger"
)

// Screener runs rules-based screening
// ⭐ SSOT: 스크리닝 로직은 여기서만
type Screener struct {
	fundamentals contracts.FundamentalsRepository
	logger       *logger.Logger
}

// NewScreener creates a new screener
func NewScreener(fundamentals contracts.FundamentalsRepository, log *logger.Logger) *Screener {
	return &Screener{
		fundamentals: fundamentals,
		logger:       log,
	}
}

// RunScreening evaluates the methodology against the whole universe:
// conjunctive filters, then ranking by the sort key, then the
// constituent cap. An empty universe yields an empty candidate list,
// not an error. 빈 결과는 정상 (장 휴무, 데이터 수집 전 등).
func (s *Screener) RunScreening(ctx context.Context, methodology contracts.Methodology) ([]contracts.Candidate, error) {
	if err := methodology.Validate(); err != nil {
		return nil, fmt.Errorf("invalid methodology: %w", err)
	}

	universe, err := s.fundamentals.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fundamentals universe: %w", err)
	}

	var survivors []*contracts.Fundamentals
	for _, f := range universe {
		if passesAll(f, methodology.Filters) {
			survivors = append(survivors, f)
		}
	}

	rank(survivors, methodology.SortKey)

	if len(survivors) > methodology.MaxConstituents {
		survivors = survivors[:methodology.MaxConstituents]
	}

	candidates := make([]contracts.Candidate, 0, len(survivors))
	for _, f := range survivors {
		candidates = append(candidates, contracts.Candidate{
			Ticker: f.Ticker,
			Score:  f.QualityScore,
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"universe":   len(universe),
		"candidates": len(candidates),
	}).Info("Screening complete")

	return candidates, nil
}

// passesAll applies every filter as a conjunction
func passesAll(f *contracts.Fundamentals, filters []contracts.FilterRule) bool {
	for _, rule := range filters {
		if !passes(f, rule) {
			return false
		}
	}
	return true
}

func passes(f *contracts.Fundamentals, rule contracts.FilterRule) bool {
	switch rule.Kind {
	case contracts.FilterMaxRatio:
		v := f.Field(rule.Field)
		// 음수 비율 (적자 기업의 PER 등)은 상한 필터에서 탈락
		return v > 0 && v <= rule.Value
	case contracts.FilterMinRatio:
		return f.Field(rule.Field) >= rule.Value
	case contracts.FilterMinScore:
		return f.QualityScore >= rule.Value
	case contracts.FilterMinTradedValue:
		return f.AvgTradedValue >= rule.Value
	default:
		// Validate가 먼저 거르므로 도달하지 않음
		return false
	}
}

// rank sorts survivors by the methodology's sort key, ticker as
// tiebreaker so results are deterministic.
func rank(survivors []*contracts.Fundamentals, key contracts.SortKey) {
	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		switch key {
		case contracts.SortPERAsc:
			if a.PER != b.PER {
				return a.PER < b.PER
			}
		case contracts.SortPBRAsc:
			if a.PBR != b.PBR {
				return a.PBR < b.PBR
			}
		case contracts.SortScoreDesc:
			if a.QualityScore != b.QualityScore {
				return a.QualityScore > b.QualityScore
			}
		}
		return a.Ticker < b.Ticker
	})
}
