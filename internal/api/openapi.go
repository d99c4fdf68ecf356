package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"taskflow-ai/internal/api/response"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// OpenAPISpec loads and validates the API description served at
// /openapi.json
func OpenAPISpec(ctx context.Context) (*openapi3.T, error) {
	var specData interface{}
	if err := yaml.Unmarshal(openAPIYAML, &specData); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	jsonData, err := json.Marshal(specData)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(jsonData)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}

func openAPIHandler(doc *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if doc == nil {
			response.WriteServiceUnavailable(w, "API description unavailable")
			return
		}
		response.WriteJSON(w, http.StatusOK, doc)
	}
}
