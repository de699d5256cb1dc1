package tools

import (
	"context"
	"errors"

	"github.com/agent-protocol/contoso-agents/pkg/salesdb"
)

// Sales function tool names, used when the sales analyst queries the
// database directly instead of through the HTTP API.
const (
	SalesQueryToolName = "query_sales_data"
	SalesInfoToolName  = "get_database_info"
)

// SalesStore is the part of the sales store the function tools need.
type SalesStore interface {
	ExecuteQuery(ctx context.Context, query string) (*salesdb.QueryResult, error)
	Info(ctx context.Context) (*salesdb.DatabaseInfo, error)
}

// NewSalesQueryTool exposes literal SQL execution against the sales store.
// SQL errors are reported to the agent as {"error": ...} outputs so it can
// correct its query.
func NewSalesQueryTool(store SalesStore) (*FunctionTool, error) {
	schema := FunctionSchema{
		Parameters: map[string]*ParameterSchema{
			"query": {
				Type:        "string",
				Description: "A well-formed SQLite query to run against the Contoso sales database.",
			},
		},
		Required: []string{"query"},
	}
	return NewFunctionTool(SalesQueryToolName,
		"Run a SQLite query against the Contoso sales database and return the result as JSON.",
		schema,
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			result, err := store.ExecuteQuery(ctx, query)
			if err != nil {
				return storeError(err)
			}
			return result, nil
		})
}

// NewSalesInfoTool exposes the database schema description.
func NewSalesInfoTool(store SalesStore) (*FunctionTool, error) {
	return NewFunctionTool(SalesInfoToolName,
		"Describe the tables, columns and row counts of the Contoso sales database.",
		FunctionSchema{},
		func(ctx context.Context, _ map[string]any) (any, error) {
			info, err := store.Info(ctx)
			if err != nil {
				return storeError(err)
			}
			return info, nil
		})
}

func storeError(err error) (any, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return map[string]string{"error": err.Error()}, nil
}
