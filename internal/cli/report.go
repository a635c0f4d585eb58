package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/negolab/negosim/internal/config"
	"github.com/negolab/negosim/pkg/anomaly"
	"github.com/negolab/negosim/pkg/results"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize persisted results",
	Long: `Write a per-session CSV summary of the results tree and, when an index
file is given, print aggregate outcome counts and per-scenario deal averages.`,
	RunE: runReport,
}

var (
	reportResultsDir string
	reportOut        string
	reportIndexFile  string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportResultsDir, "results-dir", "", "directory of persisted session results")
	reportCmd.Flags().StringVar(&reportOut, "out", "anomaly_summary.csv", "CSV output path")
	reportCmd.Flags().StringVar(&reportIndexFile, "index", "", "SQLite index file to aggregate from")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	resultsDir := cfg.OutputDir
	if cmd.Flags().Changed("results-dir") {
		resultsDir = reportResultsDir
	}

	classifier := anomaly.New(anomaly.Config{
		Tolerance:      cfg.Anomaly.Tolerance,
		DeadlockWindow: cfg.Anomaly.DeadlockWindow,
	})

	rows, err := anomaly.WriteSummaryCSV(classifier, resultsDir, reportOut)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d rows to %s\n", rows, reportOut)

	if reportIndexFile == "" {
		return nil
	}

	index, err := results.OpenIndex(reportIndexFile)
	if err != nil {
		return fmt.Errorf("failed to open results index: %w", err)
	}
	defer index.Close()

	counts, err := index.ResultCounts()
	if err != nil {
		return err
	}
	fmt.Println("Outcomes:")
	for result, count := range counts {
		fmt.Printf("  %-18s %d\n", result, count)
	}

	averages, err := index.ScenarioAverages()
	if err != nil {
		return err
	}
	if len(averages) > 0 {
		fmt.Println("Deals by budget scenario:")
		for _, row := range averages {
			fmt.Printf("  %-10s deals=%-4d avg_price=%.2f avg_budget=%.2f\n",
				row.Scenario, row.Deals, row.AvgFinalPrice, row.AvgBudget)
		}
	}

	return nil
}
