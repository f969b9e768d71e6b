package chart

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const specSchemaURL = "https://statdash.schemas.local/chart/vega-lite-subset.schema.json"

// specSchema constrains the shape of the Vega-Lite documents the compiler
// understands. Unknown properties are allowed and ignored.
const specSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$ref": "#/$defs/node",
  "$defs": {
    "channel": {
      "type": "object",
      "properties": {
        "field": {"type": "string"},
        "type": {"enum": ["quantitative", "temporal", "ordinal", "nominal"]},
        "title": {"type": ["string", "null"]}
      }
    },
    "nodes": {
      "type": "array",
      "items": {"$ref": "#/$defs/node"}
    },
    "node": {
      "type": "object",
      "properties": {
        "title": {"type": ["string", "object"]},
        "data": {
          "type": "object",
          "properties": {
            "values": {"type": "array", "items": {"type": "object"}}
          }
        },
        "mark": {
          "oneOf": [
            {"type": "string"},
            {"type": "object", "required": ["type"], "properties": {"type": {"type": "string"}}}
          ]
        },
        "encoding": {
          "type": "object",
          "properties": {
            "x": {"$ref": "#/$defs/channel"},
            "y": {"$ref": "#/$defs/channel"},
            "color": {"$ref": "#/$defs/channel"}
          }
        },
        "layer": {"$ref": "#/$defs/nodes"},
        "concat": {"$ref": "#/$defs/nodes"},
        "hconcat": {"$ref": "#/$defs/nodes"},
        "vconcat": {"$ref": "#/$defs/nodes"}
      }
    }
  }
}`

//nolint:gochecknoglobals // Compiled once on first use.
var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(specSchemaURL, strings.NewReader(specSchema)); err != nil {
			schemaErr = fmt.Errorf("chart schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(specSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("chart schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}
