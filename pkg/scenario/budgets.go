// Package scenario derives the buyer budget scenarios from a product's
// retail and wholesale prices.
package scenario

import (
	"fmt"
	"math"

	"github.com/negolab/negosim/pkg/products"
)

// Scenario names one of the five deterministic buyer budget levels.
type Scenario string

const (
	High      Scenario = "high"
	Retail    Scenario = "retail"
	Mid       Scenario = "mid"
	Wholesale Scenario = "wholesale"
	Low       Scenario = "low"
)

// All returns the scenarios in their canonical enumeration order.
func All() []Scenario {
	return []Scenario{High, Retail, Mid, Wholesale, Low}
}

// Valid reports whether s is a known scenario name.
func (s Scenario) Valid() bool {
	switch s {
	case High, Retail, Mid, Wholesale, Low:
		return true
	}
	return false
}

// Budget computes the buyer budget for one scenario.
func Budget(p products.Product, s Scenario) (float64, error) {
	if math.IsNaN(p.RetailPrice) || math.IsNaN(p.WholesalePrice) ||
		p.RetailPrice < 0 || p.WholesalePrice < 0 {
		return 0, fmt.Errorf("product %d: invalid prices (retail=%v wholesale=%v)",
			p.ID, p.RetailPrice, p.WholesalePrice)
	}

	switch s {
	case High:
		return p.RetailPrice * 1.2, nil
	case Retail:
		return p.RetailPrice, nil
	case Mid:
		return (p.RetailPrice + p.WholesalePrice) / 2, nil
	case Wholesale:
		return p.WholesalePrice, nil
	case Low:
		return p.WholesalePrice * 0.8, nil
	default:
		return 0, fmt.Errorf("unknown scenario: %s", s)
	}
}

// Budgets computes all five budgets for a product.
func Budgets(p products.Product) (map[Scenario]float64, error) {
	budgets := make(map[Scenario]float64, 5)
	for _, s := range All() {
		b, err := Budget(p, s)
		if err != nil {
			return nil, err
		}
		budgets[s] = b
	}
	return budgets, nil
}
