package tools

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
	"github.com/agent-protocol/contoso-agents/pkg/salesdb"
)

func TestConnectedAgentToolDefinition(t *testing.T) {
	tool := NewConnectedAgentTool("asst_1", "sales_analyst", "Analyzes sales data")

	def := tool.Definition()
	assert.Equal(t, platform.ToolTypeConnectedAgent, def.Type)
	require.NotNil(t, def.ConnectedAgent)
	assert.Equal(t, "asst_1", def.ConnectedAgent.ID)
	assert.Equal(t, "sales_analyst", def.ConnectedAgent.Name)
	assert.Nil(t, tool.Resources())

	b, err := json.Marshal(def)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected_agent","connected_agent":{"id":"asst_1","name":"sales_analyst","description":"Analyzes sales data"}}`, string(b))
}

func TestSalesAPITool(t *testing.T) {
	tool, err := NewSalesAPITool("https://contoso-func.azurewebsites.net/")
	require.NoError(t, err)
	assert.Equal(t, SalesAPIToolName, tool.Name())
	assert.Equal(t, 3, tool.Paths())

	def := tool.Definition()
	require.NotNil(t, def.OpenAPI)
	assert.Equal(t, platform.AnonymousAuth, def.OpenAPI.Auth)

	servers := def.OpenAPI.Spec["servers"].([]any)
	assert.Equal(t, "https://contoso-func.azurewebsites.net", servers[0].(map[string]any)["url"])

	_, err = NewSalesAPITool("  ")
	assert.Error(t, err)

	_, err = NewOpenAPITool("empty", "", nil)
	assert.Error(t, err)
}

func TestBuiltinTools(t *testing.T) {
	bing := NewBingGroundingTool("conn-1")
	b, err := json.Marshal(bing.Definition())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"bing_grounding","bing_grounding":{"search_configurations":[{"connection_id":"conn-1"}]}}`, string(b))

	fs := NewFileSearchTool("vs_1")
	assert.Equal(t, platform.ToolDefinition{Type: platform.ToolTypeFileSearch}, fs.Definition())
	assert.Equal(t, []string{"vs_1"}, fs.Resources().FileSearch.VectorStoreIDs)

	ci := NewCodeInterpreterTool()
	assert.Nil(t, ci.Resources())
	assert.Equal(t, []string{"file_1"}, NewCodeInterpreterTool("file_1").Resources().CodeInterpreter.FileIDs)
}

func echoTool(t *testing.T) *FunctionTool {
	t.Helper()
	tool, err := NewFunctionTool("echo", "Echoes the message", FunctionSchema{
		Parameters: map[string]*ParameterSchema{
			"message": {Type: "string", Description: "Text to echo"},
			"times":   {Type: "integer"},
		},
		Required: []string{"message"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return map[string]any{"echo": args["message"]}, nil
	})
	require.NoError(t, err)
	return tool
}

func TestNewFunctionToolValidation(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		schema  FunctionSchema
		handler FunctionHandler
	}{
		{"empty name", "", FunctionSchema{}, func(context.Context, map[string]any) (any, error) { return nil, nil }},
		{"nil handler", "x", FunctionSchema{}, nil},
		{"undeclared required", "x", FunctionSchema{Required: []string{"q"}}, func(context.Context, map[string]any) (any, error) { return nil, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFunctionTool(tt.tool, "", tt.schema, tt.handler)
			assert.Error(t, err)
		})
	}
}

func TestFunctionToolDefinition(t *testing.T) {
	def := echoTool(t).Definition()
	require.NotNil(t, def.Function)
	assert.Equal(t, "echo", def.Function.Name)

	b, err := json.Marshal(def.Function.Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"message": {"type": "string", "description": "Text to echo"},
			"times": {"type": "integer"}
		},
		"required": ["message"]
	}`, string(b))
}

func TestFunctionToolCall(t *testing.T) {
	tool := echoTool(t)
	ctx := context.Background()

	out, err := tool.Call(ctx, `{"message":"hi","times":2}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"hi"}`, out)

	tests := []struct {
		name string
		args string
	}{
		{"malformed json", `{"message":`},
		{"missing required", `{}`},
		{"wrong type", `{"message": 3}`},
		{"not an integer", `{"message":"hi","times":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Call(ctx, tt.args)
			assert.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestFunctionToolContextCancellation(t *testing.T) {
	started := make(chan struct{})
	tool, err := NewFunctionTool("slow", "", FunctionSchema{}, func(ctx context.Context, _ map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	tool.WithTimeout(20 * time.Millisecond)

	_, err = tool.Call(context.Background(), "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = echoTool(t).Call(ctx, `{"message":"hi"}`)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatOutput(t *testing.T) {
	out, err := formatOutput("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	out, err = formatOutput(nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = formatOutput(make(chan int))
	assert.Error(t, err)
}

func TestToolSet(t *testing.T) {
	ts, err := NewToolSet(
		NewFileSearchTool("vs_1"),
		NewCodeInterpreterTool("file_1"),
		echoTool(t),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, ts.Len())
	assert.True(t, ts.HasFunctions())

	defs := ts.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, platform.ToolTypeFileSearch, defs[0].Type)
	assert.Equal(t, platform.ToolTypeFunction, defs[2].Type)

	res := ts.Resources()
	require.NotNil(t, res)
	assert.Equal(t, []string{"vs_1"}, res.FileSearch.VectorStoreIDs)
	assert.Equal(t, []string{"file_1"}, res.CodeInterpreter.FileIDs)

	err = ts.Add(echoTool(t))
	assert.Error(t, err)

	out, err := ts.ExecuteToolCall(context.Background(), platform.ToolCall{
		ID:       "call_1",
		Function: platform.FunctionCallSpec{Name: "echo", Arguments: `{"message":"hello"}`},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"hello"}`, out)

	_, err = ts.ExecuteToolCall(context.Background(), platform.ToolCall{Function: platform.FunctionCallSpec{Name: "nope"}})
	assert.Error(t, err)
}

func TestToolSetWithoutResources(t *testing.T) {
	ts, err := NewToolSet(NewConnectedAgentTool("a", "b", "c"))
	require.NoError(t, err)
	assert.Nil(t, ts.Resources())
	assert.False(t, ts.HasFunctions())
}

func openSampleStore(t *testing.T) *salesdb.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := salesdb.Open(context.Background(), salesdb.Options{
		Path:      filepath.Join(dir, "missing.db"),
		SampleDir: dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSalesQueryTool(t *testing.T) {
	store := openSampleStore(t)
	tool, err := NewSalesQueryTool(store)
	require.NoError(t, err)
	ctx := context.Background()

	out, err := tool.Call(ctx, `{"query":"SELECT region, revenue FROM sales_data WHERE year = 2023 ORDER BY id"}`)
	require.NoError(t, err)

	var result struct {
		Data     []map[string]any `json:"data"`
		Columns  []string         `json:"columns"`
		RowCount int              `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"region", "revenue"}, result.Columns)
	assert.Equal(t, len(result.Data), result.RowCount)
	assert.Equal(t, 5, result.RowCount)

	out, err = tool.Call(ctx, `{"query":"SELECT * FROM no_such_table"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"error"`)
	assert.Contains(t, out, "no_such_table")
}

func TestSalesInfoTool(t *testing.T) {
	store := openSampleStore(t)
	tool, err := NewSalesInfoTool(store)
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), "")
	require.NoError(t, err)

	var info salesdb.DatabaseInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 1, info.TotalTables)
	assert.Contains(t, info.Tables, "sales_data")
}

func TestStoreErrorPassesCancellation(t *testing.T) {
	_, err := storeError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)

	out, err := storeError(errors.New("near \"SELEC\": syntax error"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"error": "near \"SELEC\": syntax error"}, out)
}
