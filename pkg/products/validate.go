package products

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// datasetSchema describes the products file: a non-empty list of entries in
// either the dataset form (formatted price strings) or the plain form.
const datasetSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"anyOf": [
			{
				"required": ["Product Name", "Retail Price", "Wholesale Price"],
				"properties": {
					"id": {"type": "integer"},
					"Product Name": {"type": "string", "minLength": 1},
					"Retail Price": {"type": ["string", "number"]},
					"Wholesale Price": {"type": ["string", "number"]},
					"Features": {"type": "string"}
				}
			},
			{
				"required": ["name", "retail_price", "wholesale_price"],
				"properties": {
					"id": {"type": "integer"},
					"name": {"type": "string", "minLength": 1},
					"retail_price": {"type": "number"},
					"wholesale_price": {"type": "number"},
					"features": {"type": "string"}
				}
			}
		]
	}
}`

// validateSchema checks the raw dataset bytes against the schema before any
// unmarshalling happens, so malformed files fail with a field-level message.
func validateSchema(data []byte) error {
	schema := gojsonschema.NewStringLoader(datasetSchema)
	document := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return fmt.Errorf("products file is not valid: %s", strings.Join(issues, "; "))
	}

	return nil
}
