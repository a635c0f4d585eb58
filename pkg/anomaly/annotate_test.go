package anomaly

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/results"
)

func writeRecords(t *testing.T, root string, recs ...results.Record) []string {
	t.Helper()
	store := results.NewStore(root, zerolog.Nop())

	paths := make([]string, 0, len(recs))
	for _, rec := range recs {
		path, err := store.Write(rec)
		require.NoError(t, err)
		paths = append(paths, path)
	}
	return paths
}

func storedRecord(productID int, budget, finalPrice float64) results.Record {
	rec := dealRecord(budget, finalPrice)
	rec.ProductID = productID
	rec.Product.ID = productID
	rec.Models = results.ModelSet{Buyer: "gpt-4o-mini", Seller: "gpt-4o", Summary: "gpt-4o-mini"}
	return rec
}

func TestAnnotatorRun(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should add the annotation without touching negotiation content", func(t *testing.T) {
		root := t.TempDir()
		paths := writeRecords(t, root, storedRecord(1, 48, 55))

		annotator := NewAnnotator(New(DefaultConfig()), root, "", nop)
		stats, err := annotator.Run()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.Annotated)
		assert.Equal(t, 1, stats.Overpayments)

		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)

		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &doc))
		require.Contains(t, doc, "anomalies")

		var report Report
		require.NoError(t, json.Unmarshal(doc["anomalies"], &report))
		assert.True(t, report.HasLabel(Overpayment))

		// The original record still loads with its content intact.
		rec, err := results.Load(paths[0])
		require.NoError(t, err)
		assert.Equal(t, negotiation.ResultDeal, rec.Result)
		assert.Equal(t, []float64{100, 90, 55}, rec.SellerPriceOffers)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		root := t.TempDir()
		paths := writeRecords(t, root, storedRecord(1, 48, 55))

		annotator := NewAnnotator(New(DefaultConfig()), root, "", nop)
		_, err := annotator.Run()
		require.NoError(t, err)
		first, err := os.ReadFile(paths[0])
		require.NoError(t, err)

		_, err = annotator.Run()
		require.NoError(t, err)
		second, err := os.ReadFile(paths[0])
		require.NoError(t, err)

		assert.JSONEq(t, string(first), string(second))
	})

	t.Run("should back up originals before annotating", func(t *testing.T) {
		root := t.TempDir()
		backup := t.TempDir()
		paths := writeRecords(t, root, storedRecord(1, 80, 80))

		original, err := os.ReadFile(paths[0])
		require.NoError(t, err)

		annotator := NewAnnotator(New(DefaultConfig()), root, backup, nop)
		_, err = annotator.Run()
		require.NoError(t, err)

		rel, err := filepath.Rel(root, paths[0])
		require.NoError(t, err)
		copied, err := os.ReadFile(filepath.Join(backup, rel))
		require.NoError(t, err)
		assert.Equal(t, original, copied)
	})

	t.Run("should classify every file in the tree", func(t *testing.T) {
		root := t.TempDir()
		writeRecords(t, root,
			storedRecord(1, 80, 80),
			storedRecord(2, 48, 55),
			storedRecord(3, 80, 50),
		)

		annotator := NewAnnotator(New(DefaultConfig()), root, "", nop)
		stats, err := annotator.Run()
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 1, stats.Overpayments)
		assert.Equal(t, 1, stats.ConstraintViolations)
	})
}

func TestWriteSummaryCSV(t *testing.T) {
	root := t.TempDir()
	writeRecords(t, root,
		storedRecord(1, 80, 80),
		storedRecord(2, 48, 55),
	)

	out := filepath.Join(t.TempDir(), "summary.csv")
	rows, err := WriteSummaryCSV(New(DefaultConfig()), root, out)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "budget_scenario")
	assert.Contains(t, content, "overpayment")
}
