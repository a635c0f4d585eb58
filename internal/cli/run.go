package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"

	"github.com/negolab/negosim/internal/config"
	"github.com/negolab/negosim/internal/logger"
	"github.com/negolab/negosim/pkg/agent"
	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
	"github.com/negolab/negosim/pkg/results"
	"github.com/negolab/negosim/pkg/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the negotiation experiment grid",
	Long: `Run every enumerated negotiation session: seller models x buyer models x
products x budget scenarios x repetitions. Each finished session is written
as one JSON file under the output directory.`,
	RunE: runRun,
}

var (
	runProductsFile string
	runOutputDir    string
	runBuyerModels  []string
	runSellerModels []string
	runSummaryModel string
	runMaxTurns     int
	runRepetitions  int
	runConcurrency  int
	runUntil        string
	runGraceSeconds int
	runAppend       bool
	runEvaluator    string
	runOpeningRole  string
	runIndexFile    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProductsFile, "products-file", "", "product dataset JSON file")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for persisted session results")
	runCmd.Flags().StringSliceVar(&runBuyerModels, "buyer-model", nil, "buyer model id (repeatable)")
	runCmd.Flags().StringSliceVar(&runSellerModels, "seller-model", nil, "seller model id (repeatable)")
	runCmd.Flags().StringVar(&runSummaryModel, "summary-model", "", "model id for offer extraction and deal detection")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "hard per-session turn bound")
	runCmd.Flags().IntVar(&runRepetitions, "num-experiments", 0, "repetitions per grid cell")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "cap on simultaneously running sessions")
	runCmd.Flags().StringVar(&runUntil, "run-until", "", "wall-clock cutoff (RFC3339); no new session starts after it")
	runCmd.Flags().IntVar(&runGraceSeconds, "grace", -1, "seconds in-flight sessions may keep running past the cutoff")
	runCmd.Flags().BoolVar(&runAppend, "append", false, "number new experiments after existing result files instead of skipping filled cells")
	runCmd.Flags().StringVar(&runEvaluator, "evaluator", "", "deal detector: llm or rules")
	runCmd.Flags().StringVar(&runOpeningRole, "opening-role", "", "side that speaks first: buyer or seller")
	runCmd.Flags().StringVar(&runIndexFile, "index", "", "optional SQLite index file for persisted outcomes")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	validator := config.NewValidator()
	if errs := validator.ValidateConfig(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", e)
		}
		return fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	lg, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	zlog := lg.GetZerolog()

	prods, err := products.Load(cfg.ProductsFile)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	factory := &agent.ProviderFactory{
		AnthropicAPIKey: cfg.AI.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.AI.OpenAIAPIKey,
	}
	runner, err := agent.NewRunner(agent.RunnerConfig{
		Factory:      factory,
		SummaryModel: cfg.Models.Summary,
		Proxy: agent.ProxyConfig{
			Temperature: cfg.Experiment.Temperature,
			MaxTokens:   cfg.Experiment.MaxTokens,
			Retry: agent.RetryPolicy{
				MaxAttempts:    cfg.Retry.MaxAttempts,
				InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
				CallTimeout:    time.Duration(cfg.Retry.CallTimeoutSeconds) * time.Second,
			},
		},
		UseKeywordEvaluator: cfg.Experiment.Evaluator == "rules",
		Logger:              zlog,
	})
	if err != nil {
		return err
	}

	// Fail fast on model ids no provider can serve.
	models := append(append([]string{}, cfg.Models.Buyers...), cfg.Models.Sellers...)
	models = append(models, cfg.Models.Summary)
	if err := runner.ValidateModels(models...); err != nil {
		return err
	}

	store := results.NewStore(cfg.OutputDir, zlog)

	items, err := scheduler.Enumerate(scheduler.Enumeration{
		SellerModels: cfg.Models.Sellers,
		BuyerModels:  cfg.Models.Buyers,
		Products:     prods,
		Repetitions:  cfg.Experiment.Repetitions,
		MaxTurns:     cfg.Experiment.MaxTurns,
		OpeningRole:  negotiation.Role(cfg.Experiment.OpeningRole),
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate experiments: %w", err)
	}

	planned, skipped, err := reconcileWithExisting(items, store, cfg.Experiment.Repetitions, cfg.Experiment.Append)
	if err != nil {
		return fmt.Errorf("failed to scan existing results: %w", err)
	}
	if skipped > 0 {
		zlog.Info().
			Int("skipped", skipped).
			Msg("Skipping experiments already present in the output directory")
	}
	if len(planned) == 0 {
		fmt.Println("Nothing to run: every enumerated experiment already has a result file.")
		return nil
	}

	runID, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate run id: %w", err)
	}

	sink := &persistSink{store: store, summaryModel: cfg.Models.Summary, runID: runID}
	if runIndexFile != "" {
		index, err := results.OpenIndex(runIndexFile)
		if err != nil {
			return fmt.Errorf("failed to open results index: %w", err)
		}
		defer index.Close()
		sink.index = index
	}

	opts := scheduler.Options{
		RunID:       runID,
		Concurrency: cfg.Scheduler.Concurrency,
		Grace:       time.Duration(cfg.Scheduler.GraceSeconds) * time.Second,
	}
	if cfg.Scheduler.RunUntil != "" {
		deadline, err := time.Parse(time.RFC3339, cfg.Scheduler.RunUntil)
		if err != nil {
			return fmt.Errorf("invalid run-until value %q: %w", cfg.Scheduler.RunUntil, err)
		}
		opts.Deadline = deadline
	}

	sched, err := scheduler.New(runner, sink, opts, zlog)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := sched.Run(ctx, planned)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished in %s\n", summary.RunID, summary.Elapsed.Round(time.Second))
	fmt.Printf("  enumerated: %d\n", summary.Enumerated)
	fmt.Printf("  completed:  %d\n", summary.Completed)
	fmt.Printf("  errored:    %d\n", summary.Errored)
	if summary.PersistFailures > 0 {
		fmt.Printf("  unwritten:  %d\n", summary.PersistFailures)
	}
	fmt.Printf("  dropped:    %d\n", summary.Dropped)
	fmt.Printf("Results written under %s\n", filepath.Clean(cfg.OutputDir))

	return nil
}

// applyRunFlags overrides config file values with explicitly set flags.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("products-file") {
		cfg.ProductsFile = runProductsFile
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = runOutputDir
	}
	if flags.Changed("buyer-model") {
		cfg.Models.Buyers = runBuyerModels
	}
	if flags.Changed("seller-model") {
		cfg.Models.Sellers = runSellerModels
	}
	if flags.Changed("summary-model") {
		cfg.Models.Summary = runSummaryModel
	}
	if flags.Changed("max-turns") {
		cfg.Experiment.MaxTurns = runMaxTurns
	}
	if flags.Changed("num-experiments") {
		cfg.Experiment.Repetitions = runRepetitions
	}
	if flags.Changed("concurrency") {
		cfg.Scheduler.Concurrency = runConcurrency
	}
	if flags.Changed("run-until") {
		cfg.Scheduler.RunUntil = runUntil
	}
	if flags.Changed("grace") {
		cfg.Scheduler.GraceSeconds = runGraceSeconds
	}
	if flags.Changed("append") {
		cfg.Experiment.Append = runAppend
	}
	if flags.Changed("evaluator") {
		cfg.Experiment.Evaluator = runEvaluator
	}
	if flags.Changed("opening-role") {
		cfg.Experiment.OpeningRole = runOpeningRole
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
}

// reconcileWithExisting renumbers and filters enumerated items against result
// files already on disk. Without append mode a cell that already holds the
// requested repetitions is skipped and a partial cell only runs the missing
// tail; with append mode every cell runs the full repetition count, numbered
// after the highest existing experiment.
func reconcileWithExisting(items []scheduler.Item, store *results.Store, repetitions int, appendMode bool) ([]scheduler.Item, int, error) {
	type cellKey struct {
		seller, buyer string
		productID     int
		scenario      string
	}
	type cellPlan struct {
		skip  bool
		start int
		need  int
		next  int
	}

	plans := make(map[cellKey]*cellPlan)
	planned := make([]scheduler.Item, 0, len(items))
	skipped := 0

	for _, item := range items {
		key := cellKey{
			seller:    item.Config.SellerModel,
			buyer:     item.Config.BuyerModel,
			productID: item.Config.Product.ID,
			scenario:  string(item.Config.Scenario),
		}
		plan, ok := plans[key]
		if !ok {
			existing, err := store.ExistingExperiments(key.seller, key.buyer, key.productID, key.scenario)
			if err != nil {
				return nil, 0, err
			}
			plan = &cellPlan{}
			switch {
			case appendMode:
				start := 0
				for _, n := range existing {
					if n >= start {
						start = n + 1
					}
				}
				plan.start = start
				plan.need = repetitions
			case len(existing) >= repetitions:
				plan.skip = true
			default:
				plan.start = len(existing)
				plan.need = repetitions - len(existing)
			}
			plan.next = plan.start
			plans[key] = plan
		}

		if plan.skip || plan.next-plan.start >= plan.need {
			skipped++
			continue
		}
		item.Config.ExperimentIndex = plan.next
		plan.next++
		planned = append(planned, item)
	}

	return planned, skipped, nil
}

// persistSink writes each terminal outcome to the result store and, when an
// index is attached, records it there as well. Store and index writes are
// both safe under concurrent sessions.
type persistSink struct {
	store        *results.Store
	index        *results.Index
	summaryModel string
	runID        string
}

func (s *persistSink) Persist(item scheduler.Item, outcome *negotiation.Outcome) error {
	rec := results.NewRecord(item.Config, outcome, s.summaryModel)
	path, err := s.store.Write(rec)
	if err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Add(s.runID, path, rec); err != nil {
			return fmt.Errorf("result file written but indexing failed: %w", err)
		}
	}
	return nil
}
