package batch

import (
	"context"
	"fmt"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/helios/backend/internal/composition"
	"github.com/wonny/helios/backend/internal/contracts"
	"github.com/wonny/helios/backend/internal/engine"
	"github.com/wonny/helios/backend/pkg/logger"
)

type fakeIndexes struct {
	defs []*contracts.IndexDefinition
}

func (r *fakeIndexes) GetByID(ctx context.Context, id int64) (*contracts.IndexDefinition, error) {
	for _, d := range r.defs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeIndexes) GetBySymbol(ctx context.Context, symbol string) (*contracts.IndexDefinition, error) {
	return nil, nil
}

func (r *fakeIndexes) List(ctx context.Context) ([]*contracts.IndexDefinition, error) {
	return r.defs, nil
}

func (r *fakeIndexes) Create(ctx context.Context, def *contracts.IndexDefinition) error {
	r.defs = append(r.defs, def)
	return nil
}

type fakeComps struct {
	entries []*contracts.CompositionEntry
}

func (r *fakeComps) GetActive(ctx context.Context, indexID int64) ([]*contracts.CompositionEntry, error) {
	var out []*contracts.CompositionEntry
	for _, e := range r.entries {
		if e.IndexID == indexID && e.Active() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeComps) GetActiveOn(ctx context.Context, indexID int64, date time.Time) ([]*contracts.CompositionEntry, error) {
	var out []*contracts.CompositionEntry
	for _, e := range r.entries {
		if e.IndexID == indexID && e.ActiveOn(date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeComps) ListByIndex(ctx context.Context, indexID int64) ([]*contracts.CompositionEntry, error) {
	return r.entries, nil
}

func (r *fakeComps) ApplyRebalance(ctx context.Context, diff *contracts.RebalanceDiff) error {
	for _, ticker := range diff.Closes {
		for _, e := range r.entries {
			if e.IndexID == diff.IndexID && e.Ticker == ticker && e.Active() {
				d := diff.Date
				e.ExitDate = &d
			}
		}
	}
	for i := range diff.Opens {
		open := diff.Opens[i]
		r.entries = append(r.entries, &open)
	}
	for ticker, w := range diff.WeightUpdates {
		for _, e := range r.entries {
			if e.IndexID == diff.IndexID && e.Ticker == ticker && e.Active() {
				e.Weight = w
			}
		}
	}
	return nil
}

type fakeHistory struct {
	points []*contracts.HistoryPoint
}

func (r *fakeHistory) GetByDate(ctx context.Context, indexID int64, date time.Time) (*contracts.HistoryPoint, error) {
	for _, p := range r.points {
		if p.IndexID == indexID && p.Date.Equal(date) {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeHistory) GetPriorTo(ctx context.Context, indexID int64, date time.Time) (*contracts.HistoryPoint, error) {
	var best *contracts.HistoryPoint
	for _, p := range r.points {
		if p.IndexID == indexID && p.Date.Before(date) && (best == nil || p.Date.After(best.Date)) {
			best = p
		}
	}
	return best, nil
}

func (r *fakeHistory) GetLatest(ctx context.Context, indexID int64) (*contracts.HistoryPoint, error) {
	var best *contracts.HistoryPoint
	for _, p := range r.points {
		if p.IndexID == indexID && (best == nil || p.Date.After(best.Date)) {
			best = p
		}
	}
	return best, nil
}

func (r *fakeHistory) GetEarliest(ctx context.Context, indexID int64) (*contracts.HistoryPoint, error) {
	var best *contracts.HistoryPoint
	for _, p := range r.points {
		if p.IndexID == indexID && (best == nil || p.Date.Before(best.Date)) {
			best = p
		}
	}
	return best, nil
}

func (r *fakeHistory) ListRange(ctx context.Context, indexID int64, from, to time.Time) ([]*contracts.HistoryPoint, error) {
	return nil, nil
}

func (r *fakeHistory) ListAll(ctx context.Context, indexID int64) ([]*contracts.HistoryPoint, error) {
	return r.points, nil
}

func (r *fakeHistory) Upsert(ctx context.Context, point *contracts.HistoryPoint) error {
	cp := *point
	for i, p := range r.points {
		if p.IndexID == point.IndexID && p.Date.Equal(point.Date) {
			r.points[i] = &cp
			return nil
		}
	}
	r.points = append(r.points, &cp)
	return nil
}

type fakeCheckpoints struct {
	saved []*contracts.CronCheckpoint
}

func (r *fakeCheckpoints) Get(ctx context.Context, jobType string, indexID *int64) (*contracts.CronCheckpoint, error) {
	for i := len(r.saved) - 1; i >= 0; i-- {
		cp := r.saved[i]
		if cp.JobType != jobType {
			continue
		}
		if (cp.IndexID == nil) != (indexID == nil) {
			continue
		}
		if cp.IndexID == nil || *cp.IndexID == *indexID {
			return cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCheckpoints) Upsert(ctx context.Context, cp *contracts.CronCheckpoint) error {
	c := *cp
	r.saved = append(r.saved, &c)
	return nil
}

type fakeQuotes struct {
	bars map[string][]contracts.PriceBar
}

func (s *fakeQuotes) FetchHistoricalPrices(ctx context.Context, ticker string, from, to time.Time, opts contracts.FetchOptions) ([]contracts.PriceBar, error) {
	var out []contracts.PriceBar
	for _, b := range s.bars[ticker] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeQuotes) FetchLiveQuote(ctx context.Context, ticker string) (*contracts.Quote, error) {
	return nil, fmt.Errorf("not used")
}

func (s *fakeQuotes) FetchQuotesBatch(ctx context.Context, tickers []string) (map[string]*contracts.Quote, map[string]error) {
	return nil, nil
}

func (s *fakeQuotes) FetchDividendCalendar(ctx context.Context, ticker string) ([]contracts.Dividend, error) {
	return nil, nil
}

type fakeScreener struct {
	candidates []contracts.Candidate
	calls      int
}

func (s *fakeScreener) RunScreening(ctx context.Context, methodology contracts.Methodology) ([]contracts.Candidate, error) {
	s.calls++
	return s.candidates, nil
}

type trackerFixture struct {
	indexes     *fakeIndexes
	comps       *fakeComps
	history     *fakeHistory
	checkpoints *fakeCheckpoints
	source      *fakeQuotes
	screener    *fakeScreener
	cal         *engine.Calendar
	rebalancer  *composition.Manager
	calculator  *engine.Calculator

	created, today time.Time
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()
	cal := engine.NewCalendar()

	f := &trackerFixture{
		indexes:     &fakeIndexes{},
		comps:       &fakeComps{},
		history:     &fakeHistory{},
		checkpoints: &fakeCheckpoints{},
		source:      &fakeQuotes{bars: map[string][]contracts.PriceBar{}},
		screener:    &fakeScreener{},
		cal:         cal,
	}

	parse := func(s string) time.Time {
		d, err := cal.ParseDate(s)
		require.NoError(t, err)
		return d
	}
	f.created = parse("2026-08-26") // 수요일
	f.today = parse("2026-08-28")   // 금요일

	f.indexes.defs = []*contracts.IndexDefinition{{
		ID: 1, Symbol: "HLV10", Name: "Helios Value 10",
		Methodology: contracts.Methodology{
			Filters:         []contracts.FilterRule{{Kind: contracts.FilterMaxRatio, Field: contracts.FieldPER, Value: 10}},
			SortKey:         contracts.SortPERAsc,
			MaxConstituents: 10,
			Weighting:       contracts.WeightingEqual,
		},
		CreatedAt: f.created,
	}}
	f.screener.candidates = []contracts.Candidate{
		{Ticker: "005930", Score: 80},
		{Ticker: "000660", Score: 70},
	}

	// Closes for the prior day through today, mirror-moving pair.
	prev := cal.PrevBusinessDay(f.created)
	f.source.bars["005930"] = []contracts.PriceBar{
		{Ticker: "005930", Date: prev, Close: 100},
		{Ticker: "005930", Date: f.created, Close: 101},
		{Ticker: "005930", Date: parse("2026-08-27"), Close: 102},
		{Ticker: "005930", Date: f.today, Close: 103},
	}
	f.source.bars["000660"] = []contracts.PriceBar{
		{Ticker: "000660", Date: prev, Close: 100},
		{Ticker: "000660", Date: f.created, Close: 99},
		{Ticker: "000660", Date: parse("2026-08-27"), Close: 98},
		{Ticker: "000660", Date: f.today, Close: 97},
	}

	f.rebalancer = composition.NewManager(f.comps, logger.NewNop())
	f.calculator = engine.NewCalculator(
		f.indexes, f.comps, f.history, f.source,
		f.screener, f.rebalancer, cal, logger.NewNop(), 0,
	)
	return f
}

func (f *trackerFixture) newTracker(budget time.Duration, now func() time.Time) *Tracker {
	return NewTracker(
		f.indexes, f.comps, f.history, f.checkpoints,
		f.calculator, f.screener, f.rebalancer, f.cal,
		logger.NewNop(), budget,
	).WithClock(now)
}

func TestTracker_Run_BootstrapAndCatchUp(t *testing.T) {
	f := newTrackerFixture(t)
	clock := f.today.Add(17 * time.Hour)
	tracker := f.newTracker(time.Hour, func() time.Time { return clock })
	ctx := context.Background()

	result, err := tracker.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.IndicesTotal)
	assert.Equal(t, 1, result.IndicesProcessed)
	assert.Equal(t, 3, result.DaysTotal) // 수·목·금
	assert.Equal(t, 3, result.DaysProcessed)
	assert.Empty(t, result.Errors)
	assert.False(t, result.BudgetExhausted)

	// Bootstrap composed the index once, as of its creation date.
	assert.Equal(t, 1, f.screener.calls)
	active, _ := f.comps.GetActive(ctx, 1)
	require.Len(t, active, 2)
	assert.True(t, active[0].EntryDate.Equal(f.created))

	// Three points exist and the series chains day over day.
	require.Len(t, f.history.points, 3)
	first, _ := f.history.GetByDate(ctx, 1, f.created)
	require.NotNil(t, first)
	assert.InDelta(t, 100.0, first.Point, 1e-9) // +1% / -1% 동일가중

	// Both the per-index and the global checkpoint record full progress.
	id := int64(1)
	cp, err := f.checkpoints.Get(ctx, contracts.JobTypeIndexUpdate, &id)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 3, cp.Processed)
	assert.Equal(t, 3, cp.Total)

	global, err := f.checkpoints.Get(ctx, contracts.JobTypeIndexUpdate, nil)
	require.NoError(t, err)
	require.NotNil(t, global)
	assert.Equal(t, 3, global.Processed)
}

func TestTracker_Run_ResumesFromLastPoint(t *testing.T) {
	f := newTrackerFixture(t)
	clock := f.today.Add(17 * time.Hour)
	tracker := f.newTracker(time.Hour, func() time.Time { return clock })
	ctx := context.Background()

	// First run catches up fully, second run finds nothing pending.
	_, err := tracker.Run(ctx)
	require.NoError(t, err)
	screenerCalls := f.screener.calls

	result, err := tracker.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, result.DaysTotal)
	assert.Equal(t, 1, result.IndicesProcessed)
	assert.Equal(t, screenerCalls, f.screener.calls, "no re-bootstrap once composed")
	assert.Len(t, f.history.points, 3)
}

func TestTracker_Run_PartialCatchUp(t *testing.T) {
	f := newTrackerFixture(t)
	thu, err := f.cal.ParseDate("2026-08-27")
	require.NoError(t, err)
	clock := thu.Add(17 * time.Hour)
	tracker := f.newTracker(time.Hour, func() time.Time { return clock })
	ctx := context.Background()

	// Thursday evening: only 수·목 are due.
	result, err := tracker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DaysProcessed)

	// Friday evening: exactly the one missing day remains.
	clock = f.today.Add(17 * time.Hour)
	result, err = tracker.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DaysTotal)
	assert.Equal(t, 1, result.DaysProcessed)
	assert.Len(t, f.history.points, 3)
}

func TestTracker_Run_BudgetExhaustion(t *testing.T) {
	f := newTrackerFixture(t)

	// Each clock read advances 45s against a 60s budget: the run stops
	// before finishing and checkpoints the partial progress.
	clock := f.today.Add(17 * time.Hour)
	step := 45 * time.Second
	calls := 0
	now := func() time.Time {
		calls++
		return clock.Add(time.Duration(calls-1) * step)
	}
	tracker := f.newTracker(time.Minute, now)
	ctx := context.Background()

	result, err := tracker.Run(ctx)
	require.NoError(t, err)

	assert.True(t, result.BudgetExhausted)
	assert.Less(t, result.DaysProcessed, result.DaysTotal)

	id := int64(1)
	cp, err := f.checkpoints.Get(ctx, contracts.JobTypeIndexUpdate, &id)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Less(t, cp.Processed, cp.Total)
}

func TestTracker_Run_EmptyScreeningFailsBootstrap(t *testing.T) {
	f := newTrackerFixture(t)
	f.screener.candidates = nil
	clock := f.today.Add(17 * time.Hour)
	tracker := f.newTracker(time.Hour, func() time.Time { return clock })

	result, err := tracker.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no candidates")
	assert.Empty(t, f.history.points)
}

func TestTracker_Run_MissingCloseDoesNotStall(t *testing.T) {
	f := newTrackerFixture(t)
	// 005930 목요일 종가 누락 (거래정지 가정): 해당 종목만 건너뛰고 전진.
	bars := f.source.bars["005930"]
	f.source.bars["005930"] = []contracts.PriceBar{bars[0], bars[1], bars[3]}
	clock := f.today.Add(17 * time.Hour)
	tracker := f.newTracker(time.Hour, func() time.Time { return clock })
	ctx := context.Background()

	result, err := tracker.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.DaysProcessed, "a per-ticker gap never blocks the day")
	assert.Len(t, f.history.points, 3)

	thu, err := f.cal.ParseDate("2026-08-27")
	require.NoError(t, err)
	point, err := f.history.GetByDate(ctx, 1, thu)
	require.NoError(t, err)
	require.NotNil(t, point)
	assert.NotContains(t, point.Contributions, "005930")
}
