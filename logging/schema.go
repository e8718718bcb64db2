package logging

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema returns the JSON Schema for the `logging` section.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := r.Reflect(&Config{})
	schema.Title = "Booth Logging Configuration"
	schema.Description = "Schema for the 'logging' section of booth.yml."
	// every logging field is optional
	schema.Required = nil

	return json.MarshalIndent(schema, "", "  ")
}
