package products

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Product is one catalog entry from the products dataset.
// RetailPrice >= WholesalePrice >= 0 is a dataset invariant; violations are
// rejected at load time, before any negotiation starts.
type Product struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	RetailPrice    float64 `json:"retail_price"`
	WholesalePrice float64 `json:"wholesale_price"`
	Features       string  `json:"features"`
}

// rawProduct mirrors the dataset file format, where prices are formatted
// strings such as "$1,299.00".
type rawProduct struct {
	ID             int             `json:"id"`
	Name           string          `json:"Product Name"`
	RetailPrice    json.RawMessage `json:"Retail Price"`
	WholesalePrice json.RawMessage `json:"Wholesale Price"`
	Features       string          `json:"Features"`
}

// UnmarshalJSON accepts both dataset-style entries ("Retail Price": "$999")
// and plain numeric entries ("retail_price": 999).
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw rawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Name != "" || raw.RetailPrice != nil {
		retail, err := parseRawPrice(raw.RetailPrice)
		if err != nil {
			return fmt.Errorf("product %d: retail price: %w", raw.ID, err)
		}
		wholesale, err := parseRawPrice(raw.WholesalePrice)
		if err != nil {
			return fmt.Errorf("product %d: wholesale price: %w", raw.ID, err)
		}

		p.ID = raw.ID
		p.Name = raw.Name
		p.RetailPrice = retail
		p.WholesalePrice = wholesale
		p.Features = raw.Features
		return nil
	}

	// Plain form; alias avoids recursing into this method.
	type plain Product
	var pp plain
	if err := json.Unmarshal(data, &pp); err != nil {
		return err
	}
	*p = Product(pp)
	return nil
}

// Validate checks the price invariant.
func (p Product) Validate() error {
	if math.IsNaN(p.RetailPrice) || math.IsNaN(p.WholesalePrice) {
		return fmt.Errorf("product %d (%s): price is NaN", p.ID, p.Name)
	}
	if p.WholesalePrice < 0 {
		return fmt.Errorf("product %d (%s): wholesale price is negative", p.ID, p.Name)
	}
	if p.RetailPrice < p.WholesalePrice {
		return fmt.Errorf("product %d (%s): retail price %.2f below wholesale price %.2f",
			p.ID, p.Name, p.RetailPrice, p.WholesalePrice)
	}
	return nil
}

func parseRawPrice(raw json.RawMessage) (float64, error) {
	if raw == nil {
		return 0, fmt.Errorf("price is missing")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParsePrice(s)
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("price is neither a string nor a number")
	}
	return f, nil
}

// ParsePrice converts a formatted price string ("$1,299.00") to a float.
func ParsePrice(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty price string")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return value, nil
}
