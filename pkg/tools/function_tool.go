package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// FunctionHandler executes a function tool locally. The result is sent back
// to the service as the tool output: strings verbatim, anything else as JSON.
type FunctionHandler func(ctx context.Context, args map[string]any) (any, error)

// ParameterSchema describes one function parameter as JSON schema.
type ParameterSchema struct {
	Type        string           `json:"type"`
	Description string           `json:"description,omitempty"`
	Enum        []any            `json:"enum,omitempty"`
	Items       *ParameterSchema `json:"items,omitempty"`
}

// FunctionSchema describes the parameters of a function.
type FunctionSchema struct {
	Parameters map[string]*ParameterSchema
	Required   []string
}

// JSONSchema renders the schema as the object schema the service expects.
func (s FunctionSchema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	for name, p := range s.Parameters {
		properties[name] = p
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// FunctionTool is a function the service asks the client to run.
type FunctionTool struct {
	BaseTool
	schema  FunctionSchema
	handler FunctionHandler
	timeout time.Duration
}

// ErrInvalidArguments is wrapped by errors caused by malformed tool arguments.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// NewFunctionTool creates a function tool. Every required parameter must be
// declared in the schema.
func NewFunctionTool(name, description string, schema FunctionSchema, handler FunctionHandler) (*FunctionTool, error) {
	if name == "" {
		return nil, errors.New("function tool name cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("function tool %s: handler cannot be nil", name)
	}
	for _, req := range schema.Required {
		if _, ok := schema.Parameters[req]; !ok {
			return nil, fmt.Errorf("function tool %s: required parameter %q is not declared", name, req)
		}
	}
	return &FunctionTool{
		BaseTool: NewBaseTool(name, description),
		schema:   schema,
		handler:  handler,
	}, nil
}

// WithTimeout bounds each execution of the tool.
func (t *FunctionTool) WithTimeout(d time.Duration) *FunctionTool {
	t.timeout = d
	return t
}

// Definition implements Tool.
func (t *FunctionTool) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{
		Type: platform.ToolTypeFunction,
		Function: &platform.FunctionDefinition{
			Name:        t.name,
			Description: t.description,
			Parameters:  t.schema.JSONSchema(),
		},
	}
}

// Call decodes the JSON arguments, validates them and runs the handler.
func (t *FunctionTool) Call(ctx context.Context, arguments string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidArguments, t.name, err)
		}
	}
	if err := t.validate(args); err != nil {
		return "", err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	result, err := t.handler(ctx, args)
	if err != nil {
		return "", err
	}
	return formatOutput(result)
}

func (t *FunctionTool) validate(args map[string]any) error {
	var missing []string
	for _, req := range t.schema.Required {
		if _, ok := args[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s: missing required parameters %v", ErrInvalidArguments, t.name, missing)
	}

	for name, value := range args {
		p, ok := t.schema.Parameters[name]
		if !ok || value == nil {
			continue
		}
		if !matchesType(p.Type, value) {
			return fmt.Errorf("%w: %s: parameter %q must be of type %s", ErrInvalidArguments, t.name, name, p.Type)
		}
	}
	return nil
}

// matchesType checks a decoded JSON value against a JSON schema type.
func matchesType(schemaType string, value any) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func formatOutput(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool output: %w", err)
	}
	return string(b), nil
}
