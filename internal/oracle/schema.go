package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	analysisOnce sync.Once
	analysisSch  *jsonschema.Schema
	analysisErr  error

	confirmOnce sync.Once
	confirmSch  *jsonschema.Schema
	confirmErr  error
)

func validateAnalysisPayload(payload []byte) error {
	analysisOnce.Do(func() {
		analysisSch, analysisErr = compileSchema("analysis.schema.json", analysisSchemaJSON)
	})
	return validatePayload(payload, analysisSch, analysisErr)
}

func validateConfirmPayload(payload []byte) error {
	confirmOnce.Do(func() {
		confirmSch, confirmErr = compileSchema("confirm.schema.json", confirmSchemaJSON)
	})
	return validatePayload(payload, confirmSch, confirmErr)
}

func compileSchema(name, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validatePayload(payload []byte, schema *jsonschema.Schema, compileErr error) error {
	if compileErr != nil {
		return fmt.Errorf("load schema: %w", compileErr)
	}
	if schema == nil {
		return fmt.Errorf("schema not initialized")
	}

	value, err := decodeStrictJSON(payload)
	if err != nil {
		return fmt.Errorf("decode payload JSON: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}
