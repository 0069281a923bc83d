package export

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const exportSchemaURL = "export.schema.json"

//go:embed export.schema.json
var exportSchemaJSON string

var ErrInvalidExport = errors.New("export json does not match the schema")

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(exportSchemaURL, strings.NewReader(exportSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(exportSchemaURL)
	})
	return compiledSchema, schemaErr
}

// validateExport checks a decoded JSON value against the export schema.
func validateExport(v any) error {
	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile export schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	return nil
}
