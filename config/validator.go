package config

import (
	"sync"

	"github.com/grovetools/booth/schema"
)

var (
	schemaOnce sync.Once
	schemaVal  *schema.Validator
	schemaErr  error
)

// SchemaValidator validates a Config against the generated JSON Schema.
type SchemaValidator struct {
	validator *schema.Validator
}

// NewSchemaValidator compiles the schema once per process.
func NewSchemaValidator() (*SchemaValidator, error) {
	schemaOnce.Do(func() {
		var data []byte
		data, schemaErr = GenerateSchema()
		if schemaErr != nil {
			return
		}
		schemaVal, schemaErr = schema.NewValidator("booth.json", data)
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return &SchemaValidator{validator: schemaVal}, nil
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
