package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/helios/backend/internal/contracts"
)

// batchCmd groups batch operations
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "배치 실행",
	Long: `전체 지수를 오늘까지 전진시키는 배치를 실행합니다.

예산 (기본 55초) 안에서 처리 가능한 만큼 진행하고 체크포인트를
남깁니다. 다음 실행이 이어서 진행하므로 반복 호출해도 안전합니다.

Subcommands:
  run     - 배치 1회 실행
  status  - 체크포인트 조회`,
}

var batchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "배치 1회 실행",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.tracker.Run(context.Background())
		if err != nil {
			return fmt.Errorf("batch run: %w", err)
		}

		fmt.Printf("indices %d/%d  days %d/%d  errors %d\n",
			result.IndicesProcessed, result.IndicesTotal,
			result.DaysProcessed, result.DaysTotal, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  ⚠️  %s\n", e)
		}
		if result.BudgetExhausted {
			fmt.Println("Budget exhausted, run again to continue")
		}
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "체크포인트 조회",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()

		global, err := a.store.Checkpoints.Get(ctx, contracts.JobTypeIndexUpdate, nil)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if global == nil {
			fmt.Println("No batch run recorded yet")
			return nil
		}

		fmt.Printf("Global: %d/%d processed, %d errors, updated %s\n",
			global.Processed, global.Total, len(global.Errors),
			global.UpdatedAt.Format("2006-01-02 15:04:05"))

		indices, err := a.store.Indexes.List(ctx)
		if err != nil {
			return fmt.Errorf("list indices: %w", err)
		}
		for _, idx := range indices {
			cp, err := a.store.Checkpoints.Get(ctx, contracts.JobTypeIndexUpdate, &idx.ID)
			if err != nil || cp == nil {
				continue
			}
			fmt.Printf("  [%d] %s: %d/%d, %d errors\n",
				idx.ID, idx.Symbol, cp.Processed, cp.Total, len(cp.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchRunCmd)
	batchCmd.AddCommand(batchStatusCmd)
}
