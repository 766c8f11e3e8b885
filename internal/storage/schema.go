package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/document.schema.json
var documentSchemaJSON []byte

const documentSchemaURL = "document.schema.json"

var (
	documentSchemaOnce sync.Once
	documentSchema     *jsonschema.Schema
	documentSchemaErr  error
)

func compiledDocumentSchema() (*jsonschema.Schema, error) {
	documentSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(documentSchemaURL, bytes.NewReader(documentSchemaJSON)); err != nil {
			documentSchemaErr = fmt.Errorf("add document schema: %w", err)
			return
		}
		documentSchema, documentSchemaErr = compiler.Compile(documentSchemaURL)
	})
	return documentSchema, documentSchemaErr
}

// ValidateDocument checks raw document JSON against the embedded schema and
// returns one line per violation.
func ValidateDocument(data []byte) ([]string, error) {
	schema, err := compiledDocumentSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document for validation: %w", err)
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, err
	}
	var problems []string
	collectSchemaProblems(ve, &problems)
	return problems, nil
}

func collectSchemaProblems(err *jsonschema.ValidationError, out *[]string) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", loc, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectSchemaProblems(cause, out)
	}
}
