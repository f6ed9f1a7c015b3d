// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lorenzo Contributors

package game

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// CatalogSchemaID is the $id of the generated catalog schema.
const CatalogSchemaID = "https://lorenzo-online.github.io/schemas/catalog.schema.json"

var (
	schemaOnce     sync.Once
	schemaCompiled *jschema.Schema
	schemaErr      error
)

// GenerateCatalogSchema generates a JSON Schema from CatalogData.
func GenerateCatalogSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&CatalogData{})
	schema.ID = jsonschema.ID(CatalogSchemaID)
	schema.Title = "Lorenzo catalog"
	schema.Description = "Cards, leaders, bonus tiles and scoring rules for a match"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATION_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateCatalog validates YAML catalog data against the catalog schema.
func ValidateCatalog(data []byte) error {
	if len(data) == 0 {
		return oops.Code("CATALOG_INVALID").Errorf("catalog data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CATALOG_INVALID").Wrapf(err, "invalid YAML")
	}

	sch, err := compiledCatalogSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code("CATALOG_INVALID").Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiledCatalogSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateCatalogSchema()
		if err != nil {
			schemaErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			schemaErr = oops.Code("SCHEMA_GENERATION_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("catalog.schema.json", doc); err != nil {
			schemaErr = oops.Code("SCHEMA_GENERATION_FAILED").Wrap(err)
			return
		}
		schemaCompiled, schemaErr = c.Compile("catalog.schema.json")
		if schemaErr != nil {
			schemaErr = oops.Code("SCHEMA_GENERATION_FAILED").Wrap(schemaErr)
		}
	})
	return schemaCompiled, schemaErr
}

// toJSONTypes normalizes decoded YAML so the validator sees the same shapes
// encoding/json would produce.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
