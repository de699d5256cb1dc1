package tools

import (
	"fmt"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
	"github.com/agent-protocol/contoso-agents/pkg/salesapi"
)

// Sales API tool naming as exposed to the sales analyst.
const (
	SalesAPIToolName        = "sales_data_api"
	SalesAPIToolDescription = "API for querying Contoso sales data using SQLite queries and getting database schema information"
)

// OpenAPITool lets an agent call an HTTP API described by an OpenAPI
// document. The service makes the HTTP calls.
type OpenAPITool struct {
	BaseTool
	spec map[string]any
	auth platform.OpenAPIAuth
}

// NewOpenAPITool creates an OpenAPI tool with anonymous auth.
func NewOpenAPITool(name, description string, spec map[string]any) (*OpenAPITool, error) {
	if len(spec) == 0 {
		return nil, fmt.Errorf("openapi tool %s: spec is empty", name)
	}
	return &OpenAPITool{
		BaseTool: NewBaseTool(name, description),
		spec:     spec,
		auth:     platform.AnonymousAuth,
	}, nil
}

// NewSalesAPITool builds the OpenAPI tool for the sales query API served at
// endpoint.
func NewSalesAPITool(endpoint string) (*OpenAPITool, error) {
	spec, err := salesapi.OpenAPISpec(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales API spec: %w", err)
	}
	return NewOpenAPITool(SalesAPIToolName, SalesAPIToolDescription, spec)
}

// Paths returns the number of paths in the spec.
func (t *OpenAPITool) Paths() int {
	paths, _ := t.spec["paths"].(map[string]any)
	return len(paths)
}

// Definition implements Tool.
func (t *OpenAPITool) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{
		Type: platform.ToolTypeOpenAPI,
		OpenAPI: &platform.OpenAPIDefinition{
			Name:        t.name,
			Description: t.description,
			Spec:        t.spec,
			Auth:        t.auth,
		},
	}
}
