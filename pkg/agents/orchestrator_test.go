package agents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
	"github.com/agent-protocol/contoso-agents/pkg/salesdb"
)

func writeDatasheet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contoso-tents-datasheet.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	return path
}

func newTestOrchestrator(t *testing.T, fake *fakePlatform, mutate func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{
		Model:            "gpt-4o",
		SalesAPIEndpoint: "https://contoso-func.azurewebsites.net",
		DatasheetPath:    writeDatasheet(t),
		PollInterval:     time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	o, err := NewOrchestrator(fake, opts)
	require.NoError(t, err)
	return o
}

func TestNewOrchestratorValidation(t *testing.T) {
	fake := newFakePlatform()
	tests := []struct {
		name string
		opts Options
	}{
		{"no model", Options{SalesAPIEndpoint: "https://x"}},
		{"openapi without endpoint", Options{Model: "m"}},
		{"function without store", Options{Model: "m", SalesTool: SalesToolFunction}},
		{"unknown mode", Options{Model: "m", SalesTool: "grpc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(fake, tt.opts)
			assert.Error(t, err)
		})
	}

	_, err := NewOrchestrator(nil, Options{Model: "m", SalesAPIEndpoint: "https://x"})
	assert.Error(t, err)
}

func TestInitializeAgents(t *testing.T) {
	fake := newFakePlatform()
	var progress []string
	o := newTestOrchestrator(t, fake, func(opts *Options) {
		opts.BingConnectionID = "bing-conn"
		opts.Progress = func(msg string) { progress = append(progress, msg) }
	})

	require.NoError(t, o.InitializeAgents(context.Background()))
	assert.True(t, o.Ready())
	assert.NotEmpty(t, o.ThreadID())
	assert.Contains(t, progress, "Loaded OpenAPI spec with 3 endpoints")

	_, sales, ok := fake.agentByName("Contoso Sales Analyst")
	require.True(t, ok)
	require.Len(t, sales.Tools, 1)
	assert.Equal(t, platform.ToolTypeOpenAPI, sales.Tools[0].Type)
	assert.Equal(t, "sales_data_api", sales.Tools[0].OpenAPI.Name)
	assert.Contains(t, sales.Instructions, "Contoso Sales Analyst")

	_, market, ok := fake.agentByName("Contoso Market Researcher")
	require.True(t, ok)
	require.Len(t, market.Tools, 2)
	assert.Equal(t, platform.ToolTypeBingGrounding, market.Tools[0].Type)
	assert.Equal(t, platform.ToolTypeFileSearch, market.Tools[1].Type)
	require.NotNil(t, market.ToolResources)
	assert.Len(t, market.ToolResources.FileSearch.VectorStoreIDs, 1)
	assert.Len(t, fake.stores, 1)
	for _, vs := range fake.stores {
		assert.Equal(t, ProductVectorStoreName, vs.Name)
	}

	_, report, ok := fake.agentByName("Contoso Report Generator")
	require.True(t, ok)
	assert.Equal(t, []platform.ToolDefinition{{Type: platform.ToolTypeCodeInterpreter}}, report.Tools)

	_, coordinator, ok := fake.agentByName("Contoso Multi-Agent Coordinator")
	require.True(t, ok)
	require.Len(t, coordinator.Tools, 3)
	for i, role := range SpecialistRoles {
		tool := coordinator.Tools[i]
		assert.Equal(t, platform.ToolTypeConnectedAgent, tool.Type)
		assert.Equal(t, string(role), tool.ConnectedAgent.Name)
		assert.Equal(t, DefaultAgentConfigs()[role].Description, tool.ConnectedAgent.Description)
		id, _, _ := fake.agentByName(DefaultAgentConfigs()[role].Name)
		assert.Equal(t, id, tool.ConnectedAgent.ID)
	}

	agents := o.Agents()
	require.Len(t, agents, 4)
	assert.Equal(t, RoleSalesAnalyst, agents[0].Role)
	assert.Equal(t, RoleCoordinator, agents[3].Role)
}

func TestInitializeWithoutBingOrDatasheet(t *testing.T) {
	fake := newFakePlatform()
	o := newTestOrchestrator(t, fake, func(opts *Options) {
		opts.DatasheetPath = filepath.Join(t.TempDir(), "missing.pdf")
	})

	require.NoError(t, o.InitializeAgents(context.Background()))

	_, market, ok := fake.agentByName("Contoso Market Researcher")
	require.True(t, ok)
	assert.Empty(t, market.Tools)
	assert.Nil(t, market.ToolResources)
	assert.Empty(t, fake.files)
}

func TestInitializeFailureLeavesCleanableState(t *testing.T) {
	fake := newFakePlatform()
	fake.failAgent = "Contoso Report Generator"
	o := newTestOrchestrator(t, fake, nil)

	err := o.InitializeAgents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report_generator")
	assert.False(t, o.Ready())

	_, _, ok := fake.agentByName("Contoso Multi-Agent Coordinator")
	assert.False(t, ok)

	require.NoError(t, o.Cleanup(context.Background()))
	assert.Empty(t, fake.agents)
	assert.Empty(t, fake.files)
	assert.Empty(t, fake.stores)
}

func TestCreateCoordinatorRequiresSpecialists(t *testing.T) {
	fake := newFakePlatform()
	o := newTestOrchestrator(t, fake, nil)

	err := o.createCoordinator(context.Background())
	require.Error(t, err)
	assert.Equal(t, "missing specialist agent: sales_analyst", err.Error())
}

func TestExecuteComplexTaskCompleted(t *testing.T) {
	fake := newFakePlatform()
	fake.reply = platform.Message{
		ID:   "msg_reply",
		Role: platform.RoleAgent,
		Content: []platform.MessageContent{
			{Type: "image_file", ImageFile: &platform.MessageImage{FileID: "file_chart"}},
			{Type: "text", Text: &platform.MessageText{Value: "# Q3 report"}},
		},
	}
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	assert.Equal(t, "# Q3 report", o.ExecuteComplexTask(ctx, "Summarize tent sales"))

	coordinatorID, _, _ := fake.agentByName("Contoso Multi-Agent Coordinator")
	require.Len(t, fake.runParams, 1)
	assert.Equal(t, coordinatorID, fake.runParams[0].AgentID)
	assert.Nil(t, fake.executors[0])
	// the answer is read back only as far as the run's start
	assert.Equal(t, []int64{1700000000}, fake.listSince)

	var seen []platform.RunStatus
	result := o.RunTask(ctx, o.ThreadID(), "again", TaskOptions{OnStatus: func(r *platform.Run) { seen = append(seen, r.Status) }})
	assert.True(t, result.Success)
	assert.Equal(t, RoleCoordinator, result.AgentRole)
	assert.Equal(t, platform.RunStatusCompleted, result.Status)
	assert.Contains(t, result.Artifacts, "file_chart")
	assert.Equal(t, []platform.RunStatus{platform.RunStatusCompleted}, seen)
}

func TestExecuteComplexTaskStatusMessages(t *testing.T) {
	tests := []struct {
		name string
		run  *platform.Run
		want string
	}{
		{"failed", &platform.Run{Status: platform.RunStatusFailed, LastError: &platform.RunError{Code: "server_error", Message: "boom"}}, "Task failed: server_error: boom"},
		{"failed without error", &platform.Run{Status: platform.RunStatusFailed}, "Task failed: Unknown error"},
		{"cancelled", &platform.Run{Status: platform.RunStatusCancelled}, "Task was cancelled"},
		{"expired", &platform.Run{Status: platform.RunStatusExpired}, "Task was expired"},
		{"incomplete", &platform.Run{Status: platform.RunStatusIncomplete}, "Task ended with status: incomplete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePlatform()
			fake.runResult = func(context.Context, string, platform.ProcessOptions) (*platform.Run, error) {
				return tt.run, nil
			}
			o := newTestOrchestrator(t, fake, nil)
			ctx := context.Background()
			require.NoError(t, o.InitializeAgents(ctx))

			result := o.RunTask(ctx, o.ThreadID(), "task", TaskOptions{})
			assert.False(t, result.Success)
			assert.Equal(t, tt.want, result.Content)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestExecuteComplexTaskTimeout(t *testing.T) {
	fake := newFakePlatform()
	fake.runResult = func(ctx context.Context, _ string, _ platform.ProcessOptions) (*platform.Run, error) {
		<-ctx.Done()
		return &platform.Run{ID: "run_slow", Status: platform.RunStatusInProgress}, ctx.Err()
	}
	o := newTestOrchestrator(t, fake, func(opts *Options) { opts.TaskTimeout = 20 * time.Millisecond })
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	assert.Equal(t, MsgTimedOut, o.ExecuteComplexTask(ctx, "slow task"))
}

func TestExecuteComplexTaskErrors(t *testing.T) {
	fake := newFakePlatform()
	fake.runResult = func(context.Context, string, platform.ProcessOptions) (*platform.Run, error) {
		return nil, errors.New("connection reset")
	}
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()

	assert.Equal(t, "Error during task execution: agents are not initialized", o.ExecuteComplexTask(ctx, "x"))

	require.NoError(t, o.InitializeAgents(ctx))
	assert.Equal(t, "Error during task execution: connection reset", o.ExecuteComplexTask(ctx, "x"))

	fake.runResult = nil
	fake.listErr = errors.New("list failed")
	result := o.RunTask(ctx, o.ThreadID(), "x", TaskOptions{})
	assert.False(t, result.Success)
	assert.Equal(t, MsgNoResponse, result.Content)
}

func TestFunctionModeSalesTools(t *testing.T) {
	dir := t.TempDir()
	store, err := salesdb.Open(context.Background(), salesdb.Options{Path: filepath.Join(dir, "none.db"), SampleDir: dir})
	require.NoError(t, err)

	fake := newFakePlatform()
	fake.toolCalls = []platform.ToolCall{{
		ID:       "call_1",
		Type:     "function",
		Function: platform.FunctionCallSpec{Name: "query_sales_data", Arguments: `{"query":"SELECT COUNT(*) AS n FROM sales_data"}`},
	}}
	fake.reply = platform.Message{
		Role:    platform.RoleAgent,
		Content: []platform.MessageContent{{Type: "text", Text: &platform.MessageText{Value: "There are 5 rows."}}},
	}
	o := newTestOrchestrator(t, fake, func(opts *Options) {
		opts.SalesTool = SalesToolFunction
		opts.SalesAPIEndpoint = ""
		opts.SalesStore = store
	})
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	// the analyst is only reachable as a connected agent, so it holds no functions
	_, sales, ok := fake.agentByName("Contoso Sales Analyst")
	require.True(t, ok)
	assert.Empty(t, sales.Tools)

	_, coordinator, ok := fake.agentByName("Contoso Multi-Agent Coordinator")
	require.True(t, ok)
	require.Len(t, coordinator.Tools, len(SpecialistRoles)+2)
	assert.Equal(t, "query_sales_data", coordinator.Tools[len(SpecialistRoles)].Function.Name)
	assert.Equal(t, "get_database_info", coordinator.Tools[len(SpecialistRoles)+1].Function.Name)
	assert.Contains(t, coordinator.Instructions, "query_sales_data")

	result := o.RunTask(ctx, o.ThreadID(), "How many rows?", TaskOptions{})
	assert.True(t, result.Success)
	assert.Equal(t, "There are 5 rows.", result.Content)
	assert.Contains(t, fake.toolOutputs["call_1"], `"n":5`)

	require.NoError(t, o.Cleanup(ctx))
	_, err = store.ExecuteQuery(ctx, "SELECT 1")
	assert.ErrorIs(t, err, salesdb.ErrDatabaseUnavailable)
}

func TestOpenAPIModeRunsWithoutExecutor(t *testing.T) {
	fake := newFakePlatform()
	// a function the coordinator never declared is not sent back
	fake.toolCalls = []platform.ToolCall{{ID: "call_1", Type: "function", Function: platform.FunctionCallSpec{Name: "query_sales_data"}}}
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	_, sales, ok := fake.agentByName("Contoso Sales Analyst")
	require.True(t, ok)
	require.Len(t, sales.Tools, 1)
	assert.Equal(t, "openapi", sales.Tools[0].Type)

	result := o.RunTask(ctx, o.ThreadID(), "How many rows?", TaskOptions{})
	assert.True(t, result.Success)
	assert.Empty(t, fake.toolOutputs)
	require.Len(t, fake.executors, 1)
	assert.Nil(t, fake.executors[0])
}

func TestCleanup(t *testing.T) {
	fake := newFakePlatform()
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	extra, err := o.NewThread(ctx)
	require.NoError(t, err)
	require.NoError(t, o.DeleteThread(ctx, extra))
	assert.Error(t, o.DeleteThread(ctx, o.ThreadID()))

	require.NoError(t, o.Cleanup(ctx))
	assert.Empty(t, fake.agents)
	assert.Empty(t, fake.threads)
	assert.Empty(t, fake.stores)
	assert.Empty(t, fake.files)
	assert.False(t, o.Ready())
	assert.Empty(t, o.ThreadID())

	// nothing left to delete
	require.NoError(t, o.Cleanup(ctx))
}

func TestCleanupCollectsErrors(t *testing.T) {
	fake := newFakePlatform()
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	fake.deleteErr = errors.New("service unavailable")
	err := o.Cleanup(ctx)
	require.Error(t, err)

	// coordinator, three specialists, thread, vector store, file
	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 7)
}

func TestCleanupIgnoresNotFound(t *testing.T) {
	fake := newFakePlatform()
	o := newTestOrchestrator(t, fake, nil)
	ctx := context.Background()
	require.NoError(t, o.InitializeAgents(ctx))

	fake.mu.Lock()
	fake.agents = make(map[string]platform.CreateAgentParams)
	fake.mu.Unlock()

	assert.NoError(t, o.Cleanup(ctx))
}
