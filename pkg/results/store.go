// Package results persists negotiation outcomes. The on-disk layout and the
// record shape are the durable contract the anomaly pass and downstream
// analysis depend on.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
	"github.com/rs/zerolog"
)

// ModelSet names the three models that produced a record.
type ModelSet struct {
	Buyer   string `json:"buyer"`
	Seller  string `json:"seller"`
	Summary string `json:"summary"`
}

// Parameters holds the session knobs worth preserving with the record.
type Parameters struct {
	MaxTurns int `json:"max_turns"`
}

// Record is the persisted form of one session outcome. Annotations from the
// anomaly pass are additive and live outside this struct.
type Record struct {
	SessionID         string             `json:"session_id"`
	ProductID         int                `json:"product_id"`
	ExperimentNum     int                `json:"experiment_num"`
	Product           products.Product   `json:"product_data"`
	Turns             []negotiation.Turn `json:"conversation_history"`
	SellerPriceOffers []float64          `json:"seller_price_offers"`
	Budget            float64            `json:"budget"`
	BudgetScenario    string             `json:"budget_scenario"`
	CompletedTurns    int                `json:"completed_turns"`
	Result            negotiation.Result `json:"negotiation_result"`
	FinalPrice        *float64           `json:"final_price,omitempty"`
	FailureReason     string             `json:"failure_reason,omitempty"`
	RoleViolations    []int              `json:"role_violations,omitempty"`
	Models            ModelSet           `json:"models"`
	Parameters        Parameters         `json:"parameters"`
}

// NewRecord assembles a record from a session's config and outcome.
func NewRecord(cfg negotiation.Config, outcome *negotiation.Outcome, summaryModel string) Record {
	return Record{
		SessionID:         outcome.SessionID,
		ProductID:         cfg.Product.ID,
		ExperimentNum:     cfg.ExperimentIndex,
		Product:           cfg.Product,
		Turns:             outcome.Turns,
		SellerPriceOffers: outcome.SellerOffers,
		Budget:            cfg.Budget,
		BudgetScenario:    string(cfg.Scenario),
		CompletedTurns:    outcome.EndedAtTurn,
		Result:            outcome.Result,
		FinalPrice:        outcome.FinalPrice,
		FailureReason:     outcome.FailureReason,
		RoleViolations:    outcome.RoleViolations,
		Models: ModelSet{
			Buyer:   cfg.BuyerModel,
			Seller:  cfg.SellerModel,
			Summary: summaryModel,
		},
		Parameters: Parameters{MaxTurns: cfg.MaxTurns},
	}
}

// Store writes one JSON file per outcome under
// root/seller_{seller}/{buyer}/product_{id}/budget_{scenario}/.
type Store struct {
	root   string
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{root: dir, logger: logger}
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory for one experiment cell.
func (s *Store) Dir(sellerModel, buyerModel string, productID int, scenario string) string {
	return filepath.Join(s.root,
		"seller_"+sellerModel,
		buyerModel,
		fmt.Sprintf("product_%d", productID),
		"budget_"+scenario,
	)
}

// Write persists a record and returns the file path.
func (s *Store) Write(rec Record) (string, error) {
	dir := s.Dir(rec.Models.Seller, rec.Models.Buyer, rec.ProductID, rec.BudgetScenario)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("product_%d_exp_%d.json", rec.ProductID, rec.ExperimentNum))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write record: %w", err)
	}

	s.logger.Debug().
		Str("path", path).
		Str("result", string(rec.Result)).
		Msg("Outcome persisted")

	return path, nil
}

var expFilePattern = regexp.MustCompile(`^product_\d+_exp_(\d+)\.json$`)

// ExistingExperiments returns the experiment numbers already present in one
// cell directory, used by append mode to continue numbering.
func (s *Store) ExistingExperiments(sellerModel, buyerModel string, productID int, scenario string) ([]int, error) {
	dir := s.Dir(sellerModel, buyerModel, productID, scenario)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var nums []int
	for _, entry := range entries {
		match := expFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	return nums, nil
}
