package anomaly

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/negolab/negosim/pkg/results"
)

// WriteSummaryCSV walks an annotated results tree and writes one CSV row per
// outcome, the flat view analysis tooling consumes.
func WriteSummaryCSV(classifier *Classifier, root, outPath string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create report directory: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"path", "seller_model", "buyer_model", "product_id",
		"budget_scenario", "result", "final_price", "budget",
		"labels", "bargaining_rate", "price_volatility", "max_price_change",
		"irrational_refuse",
	}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write report header: %w", err)
	}

	rows := 0
	err = results.Walk(root, func(path string, rec results.Record) error {
		report := classifier.Classify(rec)

		finalPrice := ""
		if rec.FinalPrice != nil {
			finalPrice = strconv.FormatFloat(*rec.FinalPrice, 'f', 2, 64)
		}

		labels := make([]string, 0, len(report.Labels))
		for _, l := range report.Labels {
			labels = append(labels, string(l))
		}

		row := []string{
			path,
			rec.Models.Seller,
			rec.Models.Buyer,
			strconv.Itoa(rec.ProductID),
			rec.BudgetScenario,
			string(rec.Result),
			finalPrice,
			strconv.FormatFloat(rec.Budget, 'f', 2, 64),
			strings.Join(labels, "|"),
			strconv.FormatFloat(report.BargainingRate, 'f', 4, 64),
			strconv.FormatFloat(report.PriceVolatility, 'f', 4, 64),
			strconv.FormatFloat(report.MaxPriceChange, 'f', 4, 64),
			strconv.FormatBool(report.IrrationalRefuse),
		}
		if err := w.Write(row); err != nil {
			return err
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, fmt.Errorf("failed to build summary report: %w", err)
	}

	w.Flush()
	return rows, w.Error()
}
