package salesapi

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EndpointPlaceholder marks where the deployed API URL goes in the spec.
const EndpointPlaceholder = "{function_app_endpoint}"

//go:embed sales_api_spec.json
var openAPITemplate string

// ErrNoEndpoint is returned when the OpenAPI document is requested without
// a server URL.
var ErrNoEndpoint = errors.New("sales API endpoint is empty")

// OpenAPISpec returns the OpenAPI document for this API with endpoint
// substituted as the server URL.
func OpenAPISpec(endpoint string) (map[string]any, error) {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}

	content := strings.ReplaceAll(openAPITemplate, EndpointPlaceholder, endpoint)

	var spec map[string]any
	if err := json.Unmarshal([]byte(content), &spec); err != nil {
		return nil, fmt.Errorf("invalid JSON in OpenAPI spec: %w", err)
	}
	return spec, nil
}
