package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
)

var (
	chatSchema = mustCompileSchema(`{
		"type": "object",
		"properties": {
			"message": {"type": "string"},
			"room":    {"type": "string"},
			"top_k":   {"type": "integer", "minimum": 1}
		},
		"required": ["message"],
		"additionalProperties": false
	}`)

	recommendSchema = mustCompileSchema(`{
		"type": "object",
		"properties": {
			"crop":   {"type": "string"},
			"region": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	schemeSchema = mustCompileSchema(`{
		"type": "object",
		"properties": {
			"crop":  {"type": "string", "minLength": 1},
			"state": {"type": "string", "minLength": 1}
		},
		"required": ["crop", "state"],
		"additionalProperties": false
	}`)
)

func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile request schema: %v", err))
	}
	return schema
}

// bindValidated reads the request body, validates it against the schema and
// unmarshals it into out. Validation failures list every violated
// constraint.
func bindValidated(c *gin.Context, schema *gojsonschema.Schema, out interface{}) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("request validation failed: %s", strings.Join(errs, "; "))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
