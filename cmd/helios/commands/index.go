package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/backend/internal/contracts"
)

// indexCmd groups index administration commands
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "지수 관리",
	Long: `지수 정의, 히스토리, 실시간 값을 관리합니다.

Subcommands:
  list       - 지수 목록
  create     - 지수 생성 (방법론 JSON 필요)
  update     - 특정 날짜 포인트 계산
  screen     - 스크리닝 실행 (조회만)
  rebalance  - 스크리닝 + 구성 변경 적용
  recalc     - 배당 반영 재계산
  regen      - 특정 날짜 패치 재계산
  fixbase    - 기준값 100 보정
  dividends  - 미반영 배당 점검
  realtime   - 실시간 지수 조회
  log        - 리밸런스 감사 로그 조회
  perf       - 종목별 성과 집계
  snapshot   - 최근 구성 스냅샷

Example:
  go run ./cmd/helios index update 1 --date 2026-08-28 --force`,
}

var (
	updateDate     string
	updateForce    bool
	updateNoCache  bool
	recalcFrom     string
	recalcDryRun   bool
	regenDate      string
	regenSkipScan  bool
	rebalReasons   []string
	logDate        string
	perfTicker     string
	createSymbol   string
	createName     string
	createMethod   string
)

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "지수 목록",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		indices, err := a.store.Indexes.List(context.Background())
		if err != nil {
			return fmt.Errorf("list indices: %w", err)
		}

		if len(indices) == 0 {
			fmt.Println("No indices defined")
			return nil
		}

		for _, idx := range indices {
			fmt.Printf("[%d] %s (%s)\n", idx.ID, idx.Symbol, idx.Name)
			fmt.Printf("    filters=%d sort=%s max=%d weighting=%s created=%s\n",
				len(idx.Methodology.Filters), idx.Methodology.SortKey,
				idx.Methodology.MaxConstituents, idx.Methodology.Weighting,
				idx.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "지수 생성",
	Long: `새 지수를 생성합니다. 방법론은 JSON으로 지정합니다.

Example:
  go run ./cmd/helios index create --symbol HLV10 --name "Helios Low-Value 10" \
    --methodology '{"filters":[{"kind":"MAX_RATIO","field":"PER","value":10}],"sort_key":"PER_ASC","max_constituents":10,"weighting":"EQUAL"}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var methodology contracts.Methodology
		if err := json.Unmarshal([]byte(createMethod), &methodology); err != nil {
			return fmt.Errorf("invalid methodology JSON %q: %w", createMethod, err)
		}

		def := &contracts.IndexDefinition{
			Symbol:      createSymbol,
			Name:        createName,
			Methodology: methodology,
		}
		if err := def.Validate(); err != nil {
			return fmt.Errorf("invalid definition: %w", err)
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Indexes.Create(context.Background(), def); err != nil {
			return fmt.Errorf("create index: %w", err)
		}

		fmt.Printf("✅ Created index [%d] %s\n", def.ID, def.Symbol)
		return nil
	},
}

var indexUpdateCmd = &cobra.Command{
	Use:   "update [index_id]",
	Short: "특정 날짜 포인트 계산",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		date := time.Now()
		if updateDate != "" {
			date, err = a.calendar.ParseDate(updateDate)
			if err != nil {
				return err
			}
		}

		written, err := a.calculator.UpdateIndexPoints(context.Background(), indexID, date, updateForce, updateNoCache)
		if err != nil {
			return fmt.Errorf("update index points: %w", err)
		}

		if written {
			fmt.Printf("✅ Point written for %s\n", a.calendar.FormatDate(date))
		} else {
			fmt.Printf("Point already exists for %s (use --force to overwrite)\n", a.calendar.FormatDate(date))
		}
		return nil
	},
}

var indexScreenCmd = &cobra.Command{
	Use:   "screen [index_id]",
	Short: "스크리닝 실행 (조회만, 구성 변경 없음)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		index, err := mustGetIndex(ctx, a, indexID)
		if err != nil {
			return err
		}

		candidates, err := a.screener.RunScreening(ctx, index.Methodology)
		if err != nil {
			return fmt.Errorf("screening: %w", err)
		}

		fmt.Printf("Screening result for %s: %d candidates\n", index.Symbol, len(candidates))
		for i, c := range candidates {
			fmt.Printf("  %2d. %s (score %.2f)\n", i+1, c.Ticker, c.Score)
		}
		return nil
	},
}

var indexRebalanceCmd = &cobra.Command{
	Use:   "rebalance [index_id]",
	Short: "스크리닝 + 구성 변경 적용",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		index, err := mustGetIndex(ctx, a, indexID)
		if err != nil {
			return err
		}

		candidates, err := a.screener.RunScreening(ctx, index.Methodology)
		if err != nil {
			return fmt.Errorf("screening: %w", err)
		}

		descriptions, err := parseReasons(rebalReasons)
		if err != nil {
			return err
		}

		diff, err := a.composition.UpdateComposition(ctx, index, candidates, a.calendar.Normalize(time.Now()), descriptions)
		if err != nil {
			return fmt.Errorf("rebalance: %w", err)
		}

		fmt.Printf("✅ Rebalance applied: %d entries, %d exits, %d weight updates\n",
			len(diff.Opens), len(diff.Closes), len(diff.WeightUpdates))
		return nil
	},
}

var indexRecalcCmd = &cobra.Command{
	Use:   "recalc [index_id]",
	Short: "배당 반영 재계산",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var startDate *time.Time
		if recalcFrom != "" {
			d, err := a.calendar.ParseDate(recalcFrom)
			if err != nil {
				return err
			}
			startDate = &d
		}

		result, err := a.calculator.RecalculateIndexWithDividends(context.Background(), indexID, startDate, recalcDryRun)
		if err != nil {
			return fmt.Errorf("recalculate: %w", err)
		}

		mode := "recalculated"
		if recalcDryRun {
			mode = "would recalculate"
		}
		fmt.Printf("success=%v %s=%d dividends=%d new_points=%d errors=%d\n",
			result.Success, mode, result.Recalculated, result.DividendsFound, result.NewPoints, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  ⚠️  %s\n", e)
		}
		return nil
	},
}

var indexRegenCmd = &cobra.Command{
	Use:   "regen [index_id]",
	Short: "특정 날짜 패치 재계산",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}
		if regenDate == "" {
			return fmt.Errorf("--date is required")
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := a.calendar.ParseDate(regenDate)
		if err != nil {
			return err
		}

		result, err := a.calculator.RegenerateRebalanceForDate(context.Background(), indexID, date, regenSkipScan)
		if err != nil {
			return fmt.Errorf("regenerate: %w", err)
		}

		fmt.Printf("success=%v days=%d message=%s\n", result.Success, result.RecalculatedDays, result.Message)
		for _, e := range result.Errors {
			fmt.Printf("  ⚠️  %s\n", e)
		}
		return nil
	},
}

var indexFixBaseCmd = &cobra.Command{
	Use:   "fixbase [index_id]",
	Short: "기준값 100 보정",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fixed, err := a.calculator.FixIndexStartingPoint(context.Background(), indexID)
		if err != nil {
			return fmt.Errorf("fix starting point: %w", err)
		}

		if fixed {
			fmt.Println("✅ Virtual base point inserted")
		} else {
			fmt.Println("Series already starts at base value, nothing to fix")
		}
		return nil
	},
}

var indexDividendsCmd = &cobra.Command{
	Use:   "dividends [index_id]",
	Short: "미반영 배당 점검",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.calculator.CheckPendingDividends(context.Background(), indexID)
		if err != nil {
			return fmt.Errorf("check pending dividends: %w", err)
		}

		if !result.HasPending {
			fmt.Println("No pending dividends")
			return nil
		}

		fmt.Printf("Pending dividends: %d\n", len(result.PendingDividends))
		for _, d := range result.PendingDividends {
			fmt.Printf("  %s ex-date %s amount %.0f\n", d.Ticker, d.ExDate.Format("2006-01-02"), d.Amount)
		}
		return nil
	},
}

var indexRealtimeCmd = &cobra.Command{
	Use:   "realtime [index_id]",
	Short: "실시간 지수 조회",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.realtime.CalculateRealTimeReturn(context.Background(), indexID)
		if err != nil {
			return fmt.Errorf("real-time return: %w", err)
		}

		fmt.Printf("points=%.4f return=%.4f%% daily=%.4f%%\n",
			result.RealTimePoints, result.RealTimeReturn, result.DailyChange)
		fmt.Printf("last official %.4f @ %s (market_open=%v close_posted=%v)\n",
			result.LastOfficialPoints, result.LastOfficialDate.Format("2006-01-02"),
			result.IsMarketOpen, result.HasClosingPrice)
		return nil
	},
}

var indexLogCmd = &cobra.Command{
	Use:   "log [index_id]",
	Short: "리밸런스 감사 로그 조회",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		var entries []*contracts.RebalanceLogEntry

		if logDate != "" {
			date, err := a.calendar.ParseDate(logDate)
			if err != nil {
				return err
			}
			entries, err = a.store.RebalanceLogs.ListByIndexAndDate(ctx, indexID, date)
			if err != nil {
				return fmt.Errorf("list rebalance log: %w", err)
			}
		} else {
			entries, err = a.store.RebalanceLogs.ListByIndex(ctx, indexID)
			if err != nil {
				return fmt.Errorf("list rebalance log: %w", err)
			}
		}

		if len(entries) == 0 {
			fmt.Println("No rebalance log entries")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %-5s %s  %s\n",
				e.Date.Format("2006-01-02"), e.Action, e.Ticker, e.Reason)
		}
		return nil
	},
}

var indexPerfCmd = &cobra.Command{
	Use:   "perf [index_id]",
	Short: "종목별 성과 집계",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		var results []*performanceRow

		if perfTicker != "" {
			spans, err := a.performance.CalculateAssetPerformance(ctx, indexID, perfTicker)
			if err != nil {
				return fmt.Errorf("asset performance: %w", err)
			}
			for _, s := range spans {
				results = append(results, &performanceRow{s})
			}
		} else {
			spans, err := a.performance.ListAllAssetsPerformance(ctx, indexID)
			if err != nil {
				return fmt.Errorf("all assets performance: %w", err)
			}
			for _, s := range spans {
				results = append(results, &performanceRow{s})
			}
		}

		if len(results) == 0 {
			fmt.Println("No performance data")
			return nil
		}
		for _, r := range results {
			r.print()
		}
		return nil
	},
}

var indexSnapshotCmd = &cobra.Command{
	Use:   "snapshot [index_id]",
	Short: "최근 구성 스냅샷",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexID, err := parseIndexID(args[0])
		if err != nil {
			return err
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.calculator.GetLastSnapshot(context.Background(), indexID)
		if err != nil {
			return fmt.Errorf("last snapshot: %w", err)
		}
		if snap == nil {
			fmt.Println("Index has no history yet")
			return nil
		}

		fmt.Printf("Snapshot %s (%d constituents)\n", snap.Date.Format("2006-01-02"), snap.ConstituentCount)
		for ticker, weight := range snap.Snapshot {
			fmt.Printf("  %s  %.4f\n", ticker, weight)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexUpdateCmd)
	indexCmd.AddCommand(indexScreenCmd)
	indexCmd.AddCommand(indexRebalanceCmd)
	indexCmd.AddCommand(indexRecalcCmd)
	indexCmd.AddCommand(indexRegenCmd)
	indexCmd.AddCommand(indexFixBaseCmd)
	indexCmd.AddCommand(indexDividendsCmd)
	indexCmd.AddCommand(indexRealtimeCmd)
	indexCmd.AddCommand(indexLogCmd)
	indexCmd.AddCommand(indexPerfCmd)
	indexCmd.AddCommand(indexSnapshotCmd)

	indexCreateCmd.Flags().StringVar(&createSymbol, "symbol", "", "unique index symbol")
	indexCreateCmd.Flags().StringVar(&createName, "name", "", "display name")
	indexCreateCmd.Flags().StringVar(&createMethod, "methodology", "", "methodology JSON")
	_ = indexCreateCmd.MarkFlagRequired("symbol")
	_ = indexCreateCmd.MarkFlagRequired("name")
	_ = indexCreateCmd.MarkFlagRequired("methodology")

	indexUpdateCmd.Flags().StringVar(&updateDate, "date", "", "target date (YYYY-MM-DD, default today)")
	indexUpdateCmd.Flags().BoolVar(&updateForce, "force", false, "overwrite an existing point")
	indexUpdateCmd.Flags().BoolVar(&updateNoCache, "no-cache", false, "bypass the price cache")

	indexRecalcCmd.Flags().StringVar(&recalcFrom, "from", "", "start date (default inception)")
	indexRecalcCmd.Flags().BoolVar(&recalcDryRun, "dry-run", false, "report without writing")

	indexRegenCmd.Flags().StringVar(&regenDate, "date", "", "target date (YYYY-MM-DD)")
	indexRegenCmd.Flags().BoolVar(&regenSkipScan, "skip-screening", true, "use stored composition as-is")

	indexRebalanceCmd.Flags().StringArrayVar(&rebalReasons, "reason", nil, "audit reason per ticker (TICKER=text, repeatable)")

	indexLogCmd.Flags().StringVar(&logDate, "date", "", "single rebalance date (YYYY-MM-DD, default all)")

	indexPerfCmd.Flags().StringVar(&perfTicker, "ticker", "", "single ticker (default all)")
}

// parseReasons turns repeated TICKER=text flags into a lookup map.
func parseReasons(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	reasons := make(map[string]string, len(raw))
	for _, r := range raw {
		ticker, text, ok := strings.Cut(r, "=")
		if !ok || ticker == "" || text == "" {
			return nil, fmt.Errorf("invalid --reason %q, expected TICKER=text", r)
		}
		reasons[ticker] = text
	}
	return reasons, nil
}

func parseIndexID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid index id %q", arg)
	}
	return id, nil
}

func mustGetIndex(ctx context.Context, a *app, indexID int64) (*contracts.IndexDefinition, error) {
	index, err := a.store.Indexes.GetByID(ctx, indexID)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if index == nil {
		return nil, fmt.Errorf("index %d not found", indexID)
	}
	return index, nil
}
