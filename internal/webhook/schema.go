package webhook

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed event.schema.json
var eventSchemaJSON string

var eventSchema = jsonschema.MustCompileString("https://multazero.dev/schemas/gateway-event.json", eventSchemaJSON)

// validateShape checks raw against the notification schema before it is decoded.
func validateShape(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return eventSchema.Validate(doc)
}
