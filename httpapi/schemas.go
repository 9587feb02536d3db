package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/kaptinlin/jsonschema"

	"github.com/goliatone/go-callback-relay/core"
)

const (
	SchemaCallback           = "callback"
	SchemaCheckout           = "checkout"
	SchemaCancelSubscription = "cancel_subscription"
	SchemaPortalSession      = "portal_session"
	SchemaCheckUser          = "check_user"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaSet holds the compiled request-body schemas keyed by name.
type SchemaSet struct {
	schemas map[string]*jsonschema.Schema
}

// LoadSchemas compiles every embedded request schema.
func LoadSchemas() (*SchemaSet, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	set := &SchemaSet{schemas: map[string]*jsonschema.Schema{}}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schema, err := compiler.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}
		set.schemas[entry.Name()[:len(entry.Name())-len(".json")]] = schema
	}
	return set, nil
}

func (s *SchemaSet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks body against the named schema. An empty body is checked
// as an empty object. Unknown schema names pass.
func (s *SchemaSet) Validate(name string, body []byte) error {
	if s == nil {
		return nil
	}
	schema, ok := s.schemas[name]
	if !ok {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	result := schema.ValidateJSON(body)
	if result.IsValid() {
		return nil
	}
	keys := make([]string, 0, len(result.Errors))
	for key := range result.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make([]goerrors.FieldError, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, goerrors.FieldError{Field: key, Message: fmt.Sprint(result.Errors[key])})
	}
	return core.ValidationError("Invalid request body", fields...)
}
