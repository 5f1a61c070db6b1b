// Package validate compiles the embedded journal record schemas and checks
// individual journal lines against them.
package validate

import (
	"embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schemas/*.schema.json
var schemaFiles embed.FS

const (
	SchemaSessionHeader  = "session_header"
	SchemaOperation      = "operation"
	SchemaRollbackMarker = "rollback_marker"
)

var (
	compileOnce sync.Once
	compileErr  error
	compiled    map[string]*jsonschema.Schema
)

// CompileAll compiles every embedded schema once. Safe for concurrent use;
// later calls return the cached result.
func CompileAll() error {
	compileOnce.Do(func() {
		compiled = make(map[string]*jsonschema.Schema, 3)
		for _, name := range []string{SchemaSessionHeader, SchemaOperation, SchemaRollbackMarker} {
			data, err := schemaFiles.ReadFile("schemas/" + name + ".schema.json")
			if err != nil {
				compileErr = fmt.Errorf("read embedded schema %s: %w", name, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			compiler.AssertFormat = true
			schema, err := compiler.Compile(data)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = schema
		}
	})
	return compileErr
}

// Validate checks one JSON document against the named embedded schema.
func Validate(schemaName string, data []byte) error {
	if err := CompileAll(); err != nil {
		return err
	}
	schema, ok := compiled[schemaName]
	if !ok {
		return fmt.Errorf("unknown schema %q", schemaName)
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema %s validation failed: %v", schemaName, result.Errors)
}
