package commands

import (
	"fmt"

	"github.com/wonny/helios/backend/internal/performance"
)

// performanceRow renders one span summary for the terminal
type performanceRow struct {
	*performance.AssetPerformance
}

func (r *performanceRow) print() {
	exit := "-"
	if r.ExitDate != nil {
		exit = r.ExitDate.Format("2006-01-02")
	}

	fmt.Printf("%s [%s] %s → %s\n", r.Ticker, r.Status, r.EntryDate.Format("2006-01-02"), exit)
	fmt.Printf("   price %.0f → %.0f  return %.2f%%  days %d\n",
		r.EntryPrice, r.ExitPrice, r.TotalReturn, r.DaysInIndex)
	fmt.Printf("   avg weight %.4f  contribution %.4f%%p\n",
		r.AverageWeight, r.ContributionToIndex)
}
