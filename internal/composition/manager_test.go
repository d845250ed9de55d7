package composition

import (
	"context"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/pkg/logger"
)

type fakeCompositions struct {
	active  []*contracts.CompositionEntry
	applied []*contracts.RebalanceDiff
}

func (f *fakeCompositions) GetActive(ctx context.Context, indexID int64) ([]*contracts.CompositionEntry, error) {
	return f.active, nil
}

func (f *fakeCompositions) GetActiveOn(ctx context.Context, indexID int64, date time.Time) ([]*contracts.CompositionEntry, error) {
	return f.active, nil
}

func (f *fakeCompositions) ListByIndex(ctx context.Context, indexID int64) ([]*contracts.CompositionEntry, error) {
	return f.active, nil
}

func (f *fakeCompositions) ApplyRebalance(ctx context.Context, diff *contracts.RebalanceDiff) error {
	f.applied = append(f.applied, diff)
	return nil
}

func testIndex(weighting contracts.WeightingRule) *contracts.IndexDefinition {
	return &contracts.IndexDefinition{
		ID: 1, Symbol: "HLV10", Name: "Helios Value 10",
		Methodology: contracts.Methodology{
			Filters:         []contracts.FilterRule{{Kind: contracts.FilterMaxRatio, Field: contracts.FieldPER, Value: 10}},
			SortKey:         contracts.SortPERAsc,
			MaxConstituents: 10,
			Weighting:       weighting,
		},
	}
}

func TestUpdateComposition_EntriesAndExits(t *testing.T) {
	entry := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	repo := &fakeCompositions{active: []*contracts.CompositionEntry{
		{ID: 1, IndexID: 1, Ticker: "005930", Weight: 0.5, EntryDate: entry},
		{ID: 2, IndexID: 1, Ticker: "000660", Weight: 0.5, EntryDate: entry},
	}}
	m := NewManager(repo, logger.NewNop())

	candidates := []contracts.Candidate{
		{Ticker: "000660", Score: 70},
		{Ticker: "035420", Score: 90},
	}

	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingEqual), candidates, date, nil)
	require.NoError(t, err)

	// 005930 out, 035420 in, 000660 survives at unchanged 0.5.
	assert.Equal(t, []string{"005930"}, diff.Closes)
	require.Len(t, diff.Opens, 1)
	assert.Equal(t, "035420", diff.Opens[0].Ticker)
	assert.InDelta(t, 0.5, diff.Opens[0].Weight, 1e-9)
	assert.True(t, diff.Opens[0].EntryDate.Equal(date))
	assert.Empty(t, diff.WeightUpdates)

	// One audit row per membership change, with the change reasons.
	require.Len(t, diff.Logs, 2)
	byTicker := map[string]contracts.RebalanceLogEntry{}
	for _, l := range diff.Logs {
		byTicker[l.Ticker] = l
	}
	assert.Equal(t, contracts.ActionEntry, byTicker["035420"].Action)
	assert.Equal(t, "screening pass", byTicker["035420"].Reason)
	assert.Equal(t, contracts.ActionExit, byTicker["005930"].Action)
	assert.Equal(t, "screening fail", byTicker["005930"].Reason)

	require.Len(t, repo.applied, 1)
}

func TestUpdateComposition_CustomChangeDescriptions(t *testing.T) {
	entry := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	repo := &fakeCompositions{active: []*contracts.CompositionEntry{
		{ID: 1, IndexID: 1, Ticker: "005930", Weight: 0.5, EntryDate: entry},
		{ID: 2, IndexID: 1, Ticker: "000660", Weight: 0.5, EntryDate: entry},
	}}
	m := NewManager(repo, logger.NewNop())

	candidates := []contracts.Candidate{
		{Ticker: "000660", Score: 70},
		{Ticker: "035420", Score: 90},
	}
	descriptions := map[string]string{
		"035420": "manual inclusion after listing review",
	}

	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingEqual), candidates, date, descriptions)
	require.NoError(t, err)

	byTicker := map[string]contracts.RebalanceLogEntry{}
	for _, l := range diff.Logs {
		byTicker[l.Ticker] = l
	}
	// Supplied reason wins; tickers without one keep the default.
	assert.Equal(t, "manual inclusion after listing review", byTicker["035420"].Reason)
	assert.Equal(t, "screening fail", byTicker["005930"].Reason)
}

func TestUpdateComposition_WeightUpdatesOnly(t *testing.T) {
	entry := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	// Same membership, but stored weights are off after a prior 3-stock era.
	repo := &fakeCompositions{active: []*contracts.CompositionEntry{
		{ID: 1, IndexID: 1, Ticker: "005930", Weight: 0.4, EntryDate: entry},
		{ID: 2, IndexID: 1, Ticker: "000660", Weight: 0.3, EntryDate: entry},
	}}
	m := NewManager(repo, logger.NewNop())

	candidates := []contracts.Candidate{{Ticker: "005930"}, {Ticker: "000660"}}

	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingEqual), candidates, date, nil)
	require.NoError(t, err)

	assert.Empty(t, diff.Opens)
	assert.Empty(t, diff.Closes)
	assert.InDelta(t, 0.5, diff.WeightUpdates["005930"], 1e-9)
	assert.InDelta(t, 0.5, diff.WeightUpdates["000660"], 1e-9)
	assert.Empty(t, diff.Logs, "weight renormalization is not a membership change")
}

func TestUpdateComposition_NoChange(t *testing.T) {
	entry := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	repo := &fakeCompositions{active: []*contracts.CompositionEntry{
		{ID: 1, IndexID: 1, Ticker: "005930", Weight: 0.5, EntryDate: entry},
		{ID: 2, IndexID: 1, Ticker: "000660", Weight: 0.5, EntryDate: entry},
	}}
	m := NewManager(repo, logger.NewNop())

	candidates := []contracts.Candidate{{Ticker: "005930"}, {Ticker: "000660"}}

	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingEqual), candidates, time.Now(), nil)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	assert.Empty(t, repo.applied, "no-op diff must not hit the repository")
}

func TestUpdateComposition_EmptyCandidatesIsNoOp(t *testing.T) {
	entry := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	repo := &fakeCompositions{active: []*contracts.CompositionEntry{
		{ID: 1, IndexID: 1, Ticker: "005930", Weight: 1.0, EntryDate: entry},
	}}
	m := NewManager(repo, logger.NewNop())

	// 빈 스크리닝 결과로 전종목 편출하지 않음.
	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingEqual), nil, time.Now(), nil)
	require.NoError(t, err)

	assert.True(t, diff.Empty())
	assert.Empty(t, repo.applied)
}

func TestUpdateComposition_ScoreProportionalWeights(t *testing.T) {
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	repo := &fakeCompositions{}
	m := NewManager(repo, logger.NewNop())

	candidates := []contracts.Candidate{
		{Ticker: "005930", Score: 80},
		{Ticker: "000660", Score: 20},
	}

	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingScoreProportional), candidates, date, nil)
	require.NoError(t, err)

	require.Len(t, diff.Opens, 2)
	weights := map[string]float64{}
	var sum float64
	for _, o := range diff.Opens {
		weights[o.Ticker] = o.Weight
		sum += o.Weight
	}
	assert.InDelta(t, 0.8, weights["005930"], 1e-9)
	assert.InDelta(t, 0.2, weights["000660"], 1e-9)
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestUpdateComposition_AllZeroScoresFallBackToEqual(t *testing.T) {
	repo := &fakeCompositions{}
	m := NewManager(repo, logger.NewNop())

	candidates := []contracts.Candidate{
		{Ticker: "005930", Score: 0},
		{Ticker: "000660", Score: 0},
	}

	diff, err := m.UpdateComposition(context.Background(), testIndex(contracts.WeightingScoreProportional), candidates, time.Now(), nil)
	require.NoError(t, err)

	require.Len(t, diff.Opens, 2)
	for _, o := range diff.Opens {
		assert.InDelta(t, 0.5, o.Weight, 1e-9)
	}
}

func TestUpdateComposition_NegativeScoreRejected(t *testing.T) {
	m := NewManager(&fakeCompositions{}, logger.NewNop())

	_, err := m.UpdateComposition(
		context.Background(),
		testIndex(contracts.WeightingScoreProportional),
		[]contracts.Candidate{{Ticker: "005930", Score: -1}},
		time.Now(),
		nil,
	)
	assert.ErrorContains(t, err, "negative score")
}
