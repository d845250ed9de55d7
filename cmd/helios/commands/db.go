package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// dbCmd checks database connectivity
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 상태 확인",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		health, err := a.db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		fmt.Printf("healthy=%v response_time=%s\n", health.Healthy, health.ResponseTime)

		stats := a.db.Stats()
		fmt.Printf("pool: total=%d idle=%d acquired=%d max=%d\n",
			stats.TotalConns, stats.IdleConns, stats.AcquiredConns, stats.MaxConns)

		if a.redis.Enabled() {
			fmt.Println("redis: enabled")
		} else {
			fmt.Println("redis: disabled")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
}
