// Package composition turns screening results into membership changes:
// it diffs the candidate list against the current constituents and
// applies the resulting entries, exits, and weight updates atomically.
package composition

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/logger"
)

// Manager maintains index composition
// ⭐ SSOT: 구성종목 변경 (리밸런스)은 여기서만
type Manager struct {
	compositions contracts.CompositionRepository
	logger       *logger.Logger
}

// NewManager creates a new composition manager
func NewManager(compositions contracts.CompositionRepository, log *logger.Logger) *Manager {
	return &Manager{
		compositions: compositions,
		logger:       log,
	}
}

// UpdateComposition reconciles the active composition with the
// screening candidates as of the given date. descriptions supplies
// per-ticker audit reasons (nil이면 기본 사유). An empty candidate list
// is a no-op, 빈 스크리닝 결과로 전종목 편출하지 않음 (안전장치).
func (m *Manager) UpdateComposition(
	ctx context.Context,
	index *contracts.IndexDefinition,
	candidates []contracts.Candidate,
	date time.Time,
	descriptions map[string]string,
) (*contracts.RebalanceDiff, error) {
	if len(candidates) == 0 {
		m.logger.WithField("index_id", index.ID).Warn("Empty candidate list, composition unchanged")
		return &contracts.RebalanceDiff{IndexID: index.ID, Date: date}, nil
	}

	current, err := m.compositions.GetActive(ctx, index.ID)
	if err != nil {
		return nil, fmt.Errorf("load active composition: %w", err)
	}

	diff, err := buildDiff(index, current, candidates, date, descriptions)
	if err != nil {
		return nil, err
	}

	if diff.Empty() {
		m.logger.WithField("index_id", index.ID).Info("Composition already up to date")
		return diff, nil
	}

	if err := m.compositions.ApplyRebalance(ctx, diff); err != nil {
		return nil, fmt.Errorf("apply rebalance: %w", err)
	}

	m.logger.WithFields(map[string]interface{}{
		"index_id": index.ID,
		"entries":  len(diff.Opens),
		"exits":    len(diff.Closes),
	}).Info("Composition updated")

	return diff, nil
}

// buildDiff computes the membership and weight changes. Weights for
// the post-rebalance composition always re-sum to 1.0, so surviving
// tickers get weight updates even when membership is unchanged.
func buildDiff(
	index *contracts.IndexDefinition,
	current []*contracts.CompositionEntry,
	candidates []contracts.Candidate,
	date time.Time,
	descriptions map[string]string,
) (*contracts.RebalanceDiff, error) {
	weights, err := assignWeights(index.Methodology.Weighting, candidates)
	if err != nil {
		return nil, err
	}

	candidateSet := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		candidateSet[c.Ticker] = true
	}
	currentSet := make(map[string]*contracts.CompositionEntry, len(current))
	for _, e := range current {
		currentSet[e.Ticker] = e
	}

	diff := &contracts.RebalanceDiff{
		IndexID:       index.ID,
		Date:          date,
		WeightUpdates: make(map[string]float64),
	}

	for _, c := range candidates {
		if existing, ok := currentSet[c.Ticker]; ok {
			// 생존 종목: 가중치만 갱신
			if existing.Weight != weights[c.Ticker] {
				diff.WeightUpdates[c.Ticker] = weights[c.Ticker]
			}
			continue
		}

		diff.Opens = append(diff.Opens, contracts.CompositionEntry{
			IndexID:   index.ID,
			Ticker:    c.Ticker,
			Weight:    weights[c.Ticker],
			EntryDate: date,
		})
		diff.Logs = append(diff.Logs, contracts.RebalanceLogEntry{
			IndexID: index.ID,
			Date:    date,
			Action:  contracts.ActionEntry,
			Ticker:  c.Ticker,
			Reason:  reasonFor(descriptions, c.Ticker, "screening pass"),
		})
	}

	for _, e := range current {
		if candidateSet[e.Ticker] {
			continue
		}
		diff.Closes = append(diff.Closes, e.Ticker)
		diff.Logs = append(diff.Logs, contracts.RebalanceLogEntry{
			IndexID: index.ID,
			Date:    date,
			Action:  contracts.ActionExit,
			Ticker:  e.Ticker,
			Reason:  reasonFor(descriptions, e.Ticker, "screening fail"),
		})
	}

	return diff, nil
}

// reasonFor picks the caller-supplied audit reason, if any.
func reasonFor(descriptions map[string]string, ticker, fallback string) string {
	if r, ok := descriptions[ticker]; ok && r != "" {
		return r
	}
	return fallback
}

// assignWeights computes normalized weights per the methodology
func assignWeights(rule contracts.WeightingRule, candidates []contracts.Candidate) (map[string]float64, error) {
	weights := make(map[string]float64, len(candidates))

	switch rule {
	case contracts.WeightingEqual:
		w := 1.0 / float64(len(candidates))
		for _, c := range candidates {
			weights[c.Ticker] = w
		}

	case contracts.WeightingScoreProportional:
		var total float64
		for _, c := range candidates {
			if c.Score < 0 {
				return nil, fmt.Errorf("negative score for %s", c.Ticker)
			}
			total += c.Score
		}
		if total == 0 {
			// 전원 0점이면 동일가중으로
			w := 1.0 / float64(len(candidates))
			for _, c := range candidates {
				weights[c.Ticker] = w
			}
			break
		}
		for _, c := range candidates {
			weights[c.Ticker] = c.Score / total
		}

	default:
		return nil, fmt.Errorf("unknown weighting rule %q", rule)
	}

	return weights, nil
}
