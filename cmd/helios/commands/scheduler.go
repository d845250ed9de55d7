package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

등록되는 작업:
- index_update: 평일 16:10 (당일 지수 확정)
- dividend_check: 평일 17:00 (미반영 배당 점검 + 자동 재계산)
- tick_cache_cleanup: 5분마다 (틱 캐시 정리)

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/helios scheduler start
  go run ./cmd/helios scheduler run index_update`,
}

var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "스케줄러 시작",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()

		// KIS 자격증명이 있으면 실시간 틱 피드도 함께 구동
		if feed := a.startTickFeed(ctx); feed != nil {
			defer feed.Stop()
		}

		sched := a.buildScheduler()
		sched.Start()

		fmt.Println("✅ Scheduler started")
		fmt.Println("\nRegistered jobs:")
		for _, jobName := range sched.GetAllJobs() {
			fmt.Printf("  - %s\n", jobName)
		}
		fmt.Println("\nPress Ctrl+C to stop")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		fmt.Println("\nShutting down scheduler...")
		sched.Stop()
		return nil
	},
}

var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "등록된 작업 목록",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Registered jobs:")
		for _, jobName := range a.buildScheduler().GetAllJobs() {
			fmt.Printf("  - %s\n", jobName)
		}
		return nil
	},
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run [job_name]",
	Short: "특정 작업 즉시 실행",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		jobName := args[0]
		fmt.Printf("Running job: %s\n", jobName)

		if err := a.buildScheduler().RunJobAndWait(context.Background(), jobName); err != nil {
			return fmt.Errorf("run job: %w", err)
		}

		fmt.Println("✅ Job finished")
		return nil
	},
}

var schedulerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "작업 실행 상태 조회",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats := a.buildScheduler().GetJobStats()
		if len(stats) == 0 {
			fmt.Println("No jobs registered")
			return nil
		}

		for jobName, stat := range stats {
			fmt.Printf("📊 %s\n", jobName)
			fmt.Printf("   Schedule: %s\n", stat.Schedule)
			fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
			fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
			fmt.Printf("   Failures: %d\n", stat.FailureCount)
			if stat.LastRun != nil {
				fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}
