package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
	"github.com/negolab/negosim/pkg/scenario"
)

func testRecord(productID, expNum int, result negotiation.Result) Record {
	price := 80.0
	rec := Record{
		SessionID:         "sess-1",
		ProductID:         productID,
		ExperimentNum:     expNum,
		Product:           products.Product{ID: productID, Name: "Espresso Machine", RetailPrice: 100, WholesalePrice: 60},
		Turns:             []negotiation.Turn{{Index: 1, Role: negotiation.Buyer, Text: "Hello"}},
		SellerPriceOffers: []float64{100, 90, 80},
		Budget:            80,
		BudgetScenario:    string(scenario.Mid),
		CompletedTurns:    1,
		Result:            result,
		Models:            ModelSet{Buyer: "gpt-4o-mini", Seller: "gpt-4o", Summary: "gpt-4o-mini"},
		Parameters:        Parameters{MaxTurns: 20},
	}
	if result == negotiation.ResultDeal {
		rec.FinalPrice = &price
	}
	return rec
}

func TestStoreWrite(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should lay files out by seller, buyer, product and scenario", func(t *testing.T) {
		store := NewStore(t.TempDir(), nop)

		path, err := store.Write(testRecord(3, 0, negotiation.ResultDeal))
		require.NoError(t, err)

		want := filepath.Join(store.Root(),
			"seller_gpt-4o", "gpt-4o-mini", "product_3", "budget_mid", "product_3_exp_0.json")
		assert.Equal(t, want, path)

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("should round-trip a record through disk", func(t *testing.T) {
		store := NewStore(t.TempDir(), nop)
		rec := testRecord(1, 2, negotiation.ResultDeal)

		path, err := store.Write(rec)
		require.NoError(t, err)

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, rec.SessionID, loaded.SessionID)
		assert.Equal(t, rec.SellerPriceOffers, loaded.SellerPriceOffers)
		require.NotNil(t, loaded.FinalPrice)
		assert.Equal(t, *rec.FinalPrice, *loaded.FinalPrice)
		assert.Equal(t, rec.Result, loaded.Result)
		assert.Equal(t, rec.Models, loaded.Models)
	})

	t.Run("should build the record from config and outcome", func(t *testing.T) {
		price := 75.0
		cfg := negotiation.Config{
			Product:         products.Product{ID: 4, Name: "Desk", RetailPrice: 90, WholesalePrice: 50},
			Scenario:        scenario.Retail,
			Budget:          90,
			BuyerModel:      "claude-sonnet-4-20250514",
			SellerModel:     "gpt-4o",
			MaxTurns:        20,
			ExperimentIndex: 1,
		}
		outcome := &negotiation.Outcome{
			SessionID:    "sess-9",
			Result:       negotiation.ResultDeal,
			FinalPrice:   &price,
			EndedAtTurn:  6,
			SellerOffers: []float64{90, 80, 75},
		}

		rec := NewRecord(cfg, outcome, "gpt-4o-mini")
		assert.Equal(t, 4, rec.ProductID)
		assert.Equal(t, 1, rec.ExperimentNum)
		assert.Equal(t, "retail", rec.BudgetScenario)
		assert.Equal(t, 6, rec.CompletedTurns)
		assert.Equal(t, "gpt-4o-mini", rec.Models.Summary)
		assert.Equal(t, 20, rec.Parameters.MaxTurns)
	})
}

func TestExistingExperiments(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should return nil for a cell with no results", func(t *testing.T) {
		store := NewStore(t.TempDir(), nop)
		nums, err := store.ExistingExperiments("gpt-4o", "gpt-4o-mini", 1, "mid")
		require.NoError(t, err)
		assert.Nil(t, nums)
	})

	t.Run("should list experiment numbers already on disk", func(t *testing.T) {
		store := NewStore(t.TempDir(), nop)
		for _, n := range []int{0, 1, 4} {
			_, err := store.Write(testRecord(3, n, negotiation.ResultDeal))
			require.NoError(t, err)
		}

		nums, err := store.ExistingExperiments("gpt-4o", "gpt-4o-mini", 3, "mid")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{0, 1, 4}, nums)
	})

	t.Run("should ignore files that do not match the naming scheme", func(t *testing.T) {
		store := NewStore(t.TempDir(), nop)
		_, err := store.Write(testRecord(3, 0, negotiation.ResultDeal))
		require.NoError(t, err)

		dir := store.Dir("gpt-4o", "gpt-4o-mini", 3, "mid")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0644))

		nums, err := store.ExistingExperiments("gpt-4o", "gpt-4o-mini", 3, "mid")
		require.NoError(t, err)
		assert.Equal(t, []int{0}, nums)
	})
}

func TestWalk(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should visit every persisted record", func(t *testing.T) {
		store := NewStore(t.TempDir(), nop)
		for id := 1; id <= 3; id++ {
			_, err := store.Write(testRecord(id, 0, negotiation.ResultDeal))
			require.NoError(t, err)
		}

		var seen []int
		err := Walk(store.Root(), func(path string, rec Record) error {
			seen = append(seen, rec.ProductID)
			return nil
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{1, 2, 3}, seen)
	})
}
