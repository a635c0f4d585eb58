package results

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negolab/negosim/pkg/negotiation"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "outcomes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndex(t *testing.T) {
	t.Run("should count outcomes per result", func(t *testing.T) {
		ix := openTestIndex(t)

		require.NoError(t, ix.Add("run-1", "a.json", testRecord(1, 0, negotiation.ResultDeal)))
		require.NoError(t, ix.Add("run-1", "b.json", testRecord(2, 0, negotiation.ResultDeal)))
		require.NoError(t, ix.Add("run-1", "c.json", testRecord(3, 0, negotiation.ResultNoDeal)))

		counts, err := ix.ResultCounts()
		require.NoError(t, err)
		assert.Equal(t, 2, counts[string(negotiation.ResultDeal)])
		assert.Equal(t, 1, counts[string(negotiation.ResultNoDeal)])
	})

	t.Run("should average only completed deals per scenario", func(t *testing.T) {
		ix := openTestIndex(t)

		deal := testRecord(1, 0, negotiation.ResultDeal)
		require.NoError(t, ix.Add("run-1", "a.json", deal))
		require.NoError(t, ix.Add("run-1", "b.json", testRecord(2, 0, negotiation.ResultMaxTurnsReached)))

		averages, err := ix.ScenarioAverages()
		require.NoError(t, err)
		require.Len(t, averages, 1)
		assert.Equal(t, "mid", averages[0].Scenario)
		assert.Equal(t, 1, averages[0].Deals)
		assert.InDelta(t, *deal.FinalPrice, averages[0].AvgFinalPrice, 1e-9)
	})
}
