package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/negolab/negosim/internal/config"
	"github.com/negolab/negosim/pkg/anomaly"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Annotate persisted results with anomaly labels",
	Long: `Classify every result file under the results directory and write the
anomaly report back into each file under the "anomalies" key. Negotiation
content is never modified; with --backup-dir the original file is copied
aside before annotation.`,
	RunE: runClassify,
}

var (
	classifyResultsDir     string
	classifyBackupDir      string
	classifyTolerance      float64
	classifyDeadlockWindow int
)

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&classifyResultsDir, "results-dir", "", "directory of persisted session results")
	classifyCmd.Flags().StringVar(&classifyBackupDir, "backup-dir", "", "copy each result file here before annotating it")
	classifyCmd.Flags().Float64Var(&classifyTolerance, "tolerance", 0, "overpayment slack above budget before flagging")
	classifyCmd.Flags().IntVar(&classifyDeadlockWindow, "deadlock-window", 0, "offers per side that must repeat to count as deadlocked")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	flags := cmd.Flags()
	if flags.Changed("tolerance") {
		cfg.Anomaly.Tolerance = classifyTolerance
	}
	if flags.Changed("deadlock-window") {
		cfg.Anomaly.DeadlockWindow = classifyDeadlockWindow
	}
	resultsDir := cfg.OutputDir
	if flags.Changed("results-dir") {
		resultsDir = classifyResultsDir
	}

	lg, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	classifier := anomaly.New(anomaly.Config{
		Tolerance:      cfg.Anomaly.Tolerance,
		DeadlockWindow: cfg.Anomaly.DeadlockWindow,
	})
	annotator := anomaly.NewAnnotator(classifier, resultsDir, classifyBackupDir, lg.GetZerolog())

	stats, err := annotator.Run()
	if err != nil {
		return err
	}

	fmt.Printf("Classified %d result files (%d annotated, %d errors)\n", stats.Total, stats.Annotated, stats.Errors)
	fmt.Printf("  overpayments:          %d\n", stats.Overpayments)
	fmt.Printf("  constraint violations: %d\n", stats.ConstraintViolations)
	fmt.Printf("  deadlocks:             %d\n", stats.Deadlocks)

	return nil
}
