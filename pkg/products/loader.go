package products

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Load reads and validates the products dataset.
// Any schema or price-invariant violation aborts the run before scheduling.
func Load(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file: %w", err)
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var prods []Product
	if err := json.Unmarshal(data, &prods); err != nil {
		return nil, fmt.Errorf("failed to parse products file: %w", err)
	}

	for i := range prods {
		// Dataset files may omit ids; fall back to 1-based position.
		if prods[i].ID == 0 {
			prods[i].ID = i + 1
		}
		if err := prods[i].Validate(); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Str("path", path).
		Int("count", len(prods)).
		Msg("Products dataset loaded")

	return prods, nil
}
