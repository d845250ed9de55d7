package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "helios",
	Short: "Helios - 룰 기반 합성 지수 엔진",
	Long: `Helios Index Engine CLI

스크리닝 기반 합성 지수를 계산하고 관리합니다.
기준값 100에서 출발하는 총수익 지수 (배당 포함).

Usage:
  go run ./cmd/helios [command]

Examples:
  go run ./cmd/helios index list
  go run ./cmd/helios index update 1 --date 2026-08-28
  go run ./cmd/helios batch run
  go run ./cmd/helios scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
