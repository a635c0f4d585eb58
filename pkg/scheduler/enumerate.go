package scheduler

import (
	"fmt"

	"github.com/negolab/negosim/pkg/negotiation"
	"github.com/negolab/negosim/pkg/products"
	"github.com/negolab/negosim/pkg/scenario"
)

// Enumeration describes the experiment grid.
type Enumeration struct {
	SellerModels []string
	BuyerModels  []string
	Products     []products.Product
	Scenarios    []scenario.Scenario
	Repetitions  int
	MaxTurns     int
	OpeningRole  negotiation.Role
}

// Enumerate expands the grid into the FIFO work list: seller models ×
// buyer models × products × scenarios × repetitions, in that nesting order.
// Budget derivation failures surface here, before any session starts.
func Enumerate(e Enumeration) ([]Item, error) {
	if len(e.SellerModels) == 0 || len(e.BuyerModels) == 0 {
		return nil, fmt.Errorf("at least one seller model and one buyer model are required")
	}
	if len(e.Products) == 0 {
		return nil, fmt.Errorf("at least one product is required")
	}
	if e.Repetitions <= 0 {
		return nil, fmt.Errorf("repetitions must be positive, got %d", e.Repetitions)
	}

	scenarios := e.Scenarios
	if len(scenarios) == 0 {
		scenarios = scenario.All()
	}

	var items []Item
	for _, sellerModel := range e.SellerModels {
		for _, buyerModel := range e.BuyerModels {
			for _, product := range e.Products {
				for _, sc := range scenarios {
					budget, err := scenario.Budget(product, sc)
					if err != nil {
						return nil, err
					}
					for rep := 0; rep < e.Repetitions; rep++ {
						items = append(items, Item{
							Config: negotiation.Config{
								Product:         product,
								Scenario:        sc,
								Budget:          budget,
								BuyerModel:      buyerModel,
								SellerModel:     sellerModel,
								MaxTurns:        e.MaxTurns,
								ExperimentIndex: rep,
								OpeningRole:     e.OpeningRole,
							},
						})
					}
				}
			}
		}
	}
	return items, nil
}
