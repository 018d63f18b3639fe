package protocol

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SchemaWorld       = "world.schema.json"
	SchemaPins        = "pins.schema.json"
	SchemaPlanRequest = "plan_request.schema.json"

	schemaBase = "https://nebula4x.invalid/schemas/"
)

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

func loadSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	names := []string{SchemaWorld, SchemaPins, SchemaPlanRequest}
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemaErr = err
			return
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
	}
	schemas = make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			schemaErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		schemas[name] = s
	}
}

// Validate checks a decoded JSON (or TOML) document against one of the
// embedded schemas.
func Validate(schema string, doc any) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", schema, err)
	}
	return nil
}
