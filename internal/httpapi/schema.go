package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFiles embed.FS

const (
	productSchema  = "product.schema.json"
	categorySchema = "category.schema.json"
)

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		schemas := make(map[string]*jsonschema.Schema, 2)
		for _, name := range []string{productSchema, categorySchema} {
			raw, err := schemaFiles.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema resource %s: %w", name, err)
				return
			}
			schema, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			schemas[name] = schema
		}
		compiledSchemas = schemas
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return compiledSchemas, nil
}

// requestError carries per-field validation messages for a 400 response.
type requestError struct {
	fields map[string]string
}

func (e *requestError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for field, msg := range e.fields {
		parts = append(parts, field+": "+msg)
	}
	return "invalid request body: " + strings.Join(parts, "; ")
}

func bodyError(msg string) *requestError {
	return &requestError{fields: map[string]string{"body": msg}}
}

// decodeValidated checks body against the named schema and then decodes it into out.
func decodeValidated(body io.Reader, schemaName string, out any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return bodyError("could not read request body")
	}
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return bodyError(err.Error())
	}

	schemas, err := loadSchemas()
	if err != nil {
		return err
	}
	if err := schemas[schemaName].Validate(value); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &requestError{fields: validationFields(ve)}
		}
		return bodyError(err.Error())
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return bodyError(err.Error())
	}
	return nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("request body contains trailing content")
	}
	return value, nil
}

// validationFields flattens the leaf causes of a schema error into instance path -> message.
func validationFields(ve *jsonschema.ValidationError) map[string]string {
	out := map[string]string{}
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := strings.TrimPrefix(e.InstanceLocation, "/")
			if field == "" {
				field = "body"
			}
			if _, exists := out[field]; !exists {
				out[field] = e.Message
			}
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
