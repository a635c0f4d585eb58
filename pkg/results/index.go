package results

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Index is a per-run SQLite index over persisted outcomes, the query surface
// for the report command. The JSON files remain the source of truth; the
// index can be rebuilt from them at any time.
type Index struct {
	db *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	path TEXT NOT NULL,
	seller_model TEXT NOT NULL,
	buyer_model TEXT NOT NULL,
	product_id INTEGER NOT NULL,
	budget_scenario TEXT NOT NULL,
	experiment_num INTEGER NOT NULL,
	result TEXT NOT NULL,
	final_price REAL,
	budget REAL NOT NULL,
	completed_turns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_result ON outcomes(result);
`

// OpenIndex opens (creating if needed) the outcome index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Add records one persisted outcome under a run id.
func (ix *Index) Add(runID, path string, rec Record) error {
	var finalPrice interface{}
	if rec.FinalPrice != nil {
		finalPrice = *rec.FinalPrice
	}

	_, err := ix.db.Exec(`
		INSERT INTO outcomes (
			run_id, session_id, path, seller_model, buyer_model,
			product_id, budget_scenario, experiment_num, result,
			final_price, budget, completed_turns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.SessionID, path, rec.Models.Seller, rec.Models.Buyer,
		rec.ProductID, rec.BudgetScenario, rec.ExperimentNum, string(rec.Result),
		finalPrice, rec.Budget, rec.CompletedTurns,
	)
	if err != nil {
		return fmt.Errorf("failed to index outcome: %w", err)
	}
	return nil
}

// ResultCounts returns outcome counts per terminal result across the index.
func (ix *Index) ResultCounts() (map[string]int, error) {
	rows, err := ix.db.Query(`SELECT result, COUNT(*) FROM outcomes GROUP BY result`)
	if err != nil {
		return nil, fmt.Errorf("failed to query result counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var result string
		var count int
		if err := rows.Scan(&result, &count); err != nil {
			return nil, err
		}
		counts[result] = count
	}
	return counts, rows.Err()
}

// ScenarioAverage is one row of the per-scenario deal summary.
type ScenarioAverage struct {
	Scenario      string
	Deals         int
	AvgFinalPrice float64
	AvgBudget     float64
}

// ScenarioAverages summarizes completed deals per budget scenario.
func (ix *Index) ScenarioAverages() ([]ScenarioAverage, error) {
	rows, err := ix.db.Query(`
		SELECT budget_scenario, COUNT(*), AVG(final_price), AVG(budget)
		FROM outcomes
		WHERE result = 'deal' AND final_price IS NOT NULL
		GROUP BY budget_scenario
		ORDER BY budget_scenario`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario averages: %w", err)
	}
	defer rows.Close()

	var out []ScenarioAverage
	for rows.Next() {
		var row ScenarioAverage
		if err := rows.Scan(&row.Scenario, &row.Deals, &row.AvgFinalPrice, &row.AvgBudget); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
