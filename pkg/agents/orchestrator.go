// Package agents provisions the Contoso agents on the hosted platform and
// runs tasks through the coordinator. The specialists are exposed to the
// coordinator as connected-agent tools; which specialist handles which part
// of a task is decided by the platform from the coordinator's instructions.
package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agent-protocol/contoso-agents/pkg/logging"
	"github.com/agent-protocol/contoso-agents/pkg/platform"
	"github.com/agent-protocol/contoso-agents/pkg/tools"
)

// Platform is the part of the hosted agent service the orchestrator uses.
type Platform interface {
	CreateAgent(ctx context.Context, params platform.CreateAgentParams) (*platform.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	CreateThread(ctx context.Context) (*platform.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	CreateMessage(ctx context.Context, threadID string, params platform.CreateMessageParams) (*platform.Message, error)
	ListMessages(ctx context.Context, threadID string, since int64) ([]platform.Message, error)
	CreateAndProcessRun(ctx context.Context, threadID string, params platform.CreateRunParams, opts platform.ProcessOptions) (*platform.Run, error)
	UploadFile(ctx context.Context, path string) (*platform.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateVectorStore(ctx context.Context, params platform.CreateVectorStoreParams, pollInterval time.Duration) (*platform.VectorStore, error)
	DeleteVectorStore(ctx context.Context, vectorStoreID string) error
}

var _ Platform = (*platform.Client)(nil)

// SalesStore is the sales database behind the coordinator's function tools.
type SalesStore interface {
	tools.SalesStore
	Close() error
}

// Sales tool modes.
const (
	SalesToolOpenAPI  = "openapi"
	SalesToolFunction = "function"
)

// coordinatorFunctionNote is appended to the coordinator's instructions when
// it queries the sales database itself.
const coordinatorFunctionNote = "You can query the sales database directly with the query_sales_data " +
	"and get_database_info functions. Use them to fetch the figures a task needs and pass the " +
	"results to the sales analyst for interpretation."

// Defaults for Options.
const (
	DefaultTaskTimeout     = 5 * time.Minute
	DefaultPollInterval    = time.Second
	ProductVectorStoreName = "Product Documentation"
)

// Options configures the orchestrator.
type Options struct {
	Model string
	// SalesTool selects how the database is reached: through the sales
	// analyst's OpenAPI tool (SalesToolOpenAPI, default) or through function
	// tools on the coordinator answered by this process (SalesToolFunction).
	SalesTool string
	// SalesAPIEndpoint is the public URL of the sales query API, required in
	// OpenAPI mode.
	SalesAPIEndpoint string
	// SalesStore is queried in function mode and closed by Cleanup.
	SalesStore SalesStore
	// BingConnectionID enables Bing grounding for the market researcher.
	BingConnectionID string
	// DatasheetPath is indexed for the market researcher's file search.
	// A missing file disables file search.
	DatasheetPath   string
	InstructionsDir string
	TaskTimeout     time.Duration
	PollInterval    time.Duration
	Logger          *zap.Logger
	// Progress receives human readable progress lines.
	Progress func(message string)
}

// Orchestrator owns the hosted agents, the default thread and the files
// created for them.
type Orchestrator struct {
	platform     Platform
	opts         Options
	configs      map[AgentRole]AgentConfig
	instructions *InstructionLoader
	logger       *zap.Logger
	progressMu   sync.Mutex

	mu          sync.Mutex
	specialists map[AgentRole]*platform.Agent
	coordinator *platform.Agent
	thread      *platform.Thread
	vectorStore *platform.VectorStore
	files       []*platform.File
	executor    *tools.ToolSet
}

// NewOrchestrator creates an orchestrator. Nothing is created on the
// platform until InitializeAgents.
func NewOrchestrator(p Platform, opts Options) (*Orchestrator, error) {
	if p == nil {
		return nil, errors.New("platform client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model deployment name is required")
	}
	if opts.SalesTool == "" {
		opts.SalesTool = SalesToolOpenAPI
	}
	switch opts.SalesTool {
	case SalesToolOpenAPI:
		if opts.SalesAPIEndpoint == "" {
			return nil, errors.New("sales API endpoint is required in openapi mode")
		}
	case SalesToolFunction:
		if opts.SalesStore == nil {
			return nil, errors.New("sales store is required in function mode")
		}
	default:
		return nil, fmt.Errorf("unknown sales tool mode %q", opts.SalesTool)
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	executor, _ := tools.NewToolSet()
	return &Orchestrator{
		platform:     p,
		opts:         opts,
		configs:      DefaultAgentConfigs(),
		instructions: NewInstructionLoader(opts.InstructionsDir),
		logger:       logging.OrNop(opts.Logger),
		specialists:  make(map[AgentRole]*platform.Agent),
		executor:     executor,
	}, nil
}

func (o *Orchestrator) progress(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.logger.Info(msg)
	if o.opts.Progress != nil {
		// specialists are created concurrently
		o.progressMu.Lock()
		defer o.progressMu.Unlock()
		o.opts.Progress(msg)
	}
}

// InitializeAgents creates the specialists, then the coordinator wired to
// them, then the default thread. On error, whatever was created stays
// recorded so Cleanup can remove it.
func (o *Orchestrator) InitializeAgents(ctx context.Context) error {
	o.progress("Creating specialized agents...")
	if err := o.createSpecialists(ctx); err != nil {
		return err
	}
	if err := o.createCoordinator(ctx); err != nil {
		return err
	}

	thread, err := o.platform.CreateThread(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.thread = thread
	o.mu.Unlock()
	return nil
}

// createSpecialists creates the three specialists concurrently.
func (o *Orchestrator) createSpecialists(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.createSalesAnalyst(gctx) })
	g.Go(func() error { return o.createMarketResearcher(gctx) })
	g.Go(func() error { return o.createReportGenerator(gctx) })
	return g.Wait()
}

// createSalesAnalyst gives the analyst the sales API in openapi mode. In
// function mode the database functions belong to the coordinator, since a
// connected agent's function calls never reach this process.
func (o *Orchestrator) createSalesAnalyst(ctx context.Context) error {
	ts, _ := tools.NewToolSet()
	if o.opts.SalesTool == SalesToolOpenAPI {
		api, err := tools.NewSalesAPITool(o.opts.SalesAPIEndpoint)
		if err != nil {
			return err
		}
		o.progress("Loaded OpenAPI spec with %d endpoints", api.Paths())
		if err := ts.Add(api); err != nil {
			return err
		}
	}
	return o.createSpecialist(ctx, RoleSalesAnalyst, ts)
}

// addSalesFunctions adds the database functions to the coordinator's tools.
func (o *Orchestrator) addSalesFunctions(ts *tools.ToolSet) error {
	query, err := tools.NewSalesQueryTool(o.opts.SalesStore)
	if err != nil {
		return err
	}
	info, err := tools.NewSalesInfoTool(o.opts.SalesStore)
	if err != nil {
		return err
	}
	return ts.Add(query, info)
}

func (o *Orchestrator) createMarketResearcher(ctx context.Context) error {
	ts, _ := tools.NewToolSet()
	if o.opts.BingConnectionID != "" {
		if err := ts.Add(tools.NewBingGroundingTool(o.opts.BingConnectionID)); err != nil {
			return err
		}
	}

	vs, err := o.productVectorStore(ctx)
	if err != nil {
		return err
	}
	if vs != nil {
		if err := ts.Add(tools.NewFileSearchTool(vs.ID)); err != nil {
			return err
		}
	}
	return o.createSpecialist(ctx, RoleMarketResearcher, ts)
}

// productVectorStore uploads the datasheet and indexes it. It returns nil
// when no datasheet is available.
func (o *Orchestrator) productVectorStore(ctx context.Context) (*platform.VectorStore, error) {
	path := o.opts.DatasheetPath
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		o.logger.Warn("Product datasheet not available, file search disabled", zap.String("path", path), zap.Error(err))
		return nil, nil
	}

	file, err := o.platform.UploadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.files = append(o.files, file)
	o.mu.Unlock()

	vs, err := o.platform.CreateVectorStore(ctx, platform.CreateVectorStoreParams{
		Name:    ProductVectorStoreName,
		FileIDs: []string{file.ID},
	}, o.opts.PollInterval)
	if vs != nil && vs.ID != "" {
		o.mu.Lock()
		o.vectorStore = vs
		o.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return vs, nil
}

func (o *Orchestrator) createReportGenerator(ctx context.Context) error {
	ts, err := tools.NewToolSet(tools.NewCodeInterpreterTool())
	if err != nil {
		return err
	}
	return o.createSpecialist(ctx, RoleReportGenerator, ts)
}

func (o *Orchestrator) createSpecialist(ctx context.Context, role AgentRole, ts *tools.ToolSet) error {
	agent, err := o.createAgent(ctx, role, ts, "")
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.specialists[role] = agent
	o.mu.Unlock()
	o.progress("Created %s agent", o.configs[role].Name)
	return nil
}

// createAgent creates the agent for role with extra appended to its
// instructions.
func (o *Orchestrator) createAgent(ctx context.Context, role AgentRole, ts *tools.ToolSet, extra string) (*platform.Agent, error) {
	cfg := o.configs[role]
	instructions, err := o.instructions.Load(cfg.InstructionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", role, err)
	}
	if extra != "" {
		instructions += "\n\n" + extra
	}

	agent, err := o.platform.CreateAgent(ctx, platform.CreateAgentParams{
		Model:         o.opts.Model,
		Name:          cfg.Name,
		Instructions:  instructions,
		Tools:         ts.Definitions(),
		ToolResources: ts.Resources(),
		Metadata:      map[string]string{"role": string(role)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", role, err)
	}
	return agent, nil
}

// createCoordinator verifies every specialist exists and creates the
// coordinator with one connected-agent tool per specialist.
func (o *Orchestrator) createCoordinator(ctx context.Context) error {
	o.progress("Creating coordinator agent with connected tools...")

	o.mu.Lock()
	ts, _ := tools.NewToolSet()
	for _, role := range SpecialistRoles {
		agent, ok := o.specialists[role]
		if !ok {
			o.mu.Unlock()
			return fmt.Errorf("missing specialist agent: %s", role)
		}
		o.logger.Debug("Verified specialist", zap.String("role", string(role)), zap.String("agent_id", agent.ID))
		if err := ts.Add(tools.NewConnectedAgentTool(agent.ID, string(role), o.configs[role].Description)); err != nil {
			o.mu.Unlock()
			return err
		}
	}
	o.mu.Unlock()

	extra := ""
	if o.opts.SalesTool == SalesToolFunction {
		if err := o.addSalesFunctions(ts); err != nil {
			return err
		}
		extra = coordinatorFunctionNote
	}
	agent, err := o.createAgent(ctx, RoleCoordinator, ts, extra)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.coordinator = agent
	// tool calls of the coordinator's runs are answered from its own set
	o.executor = ts
	o.mu.Unlock()
	o.progress("Created %s with connected tools", o.configs[RoleCoordinator].Name)
	return nil
}

// Agents lists the provisioned agents, specialists first.
func (o *Orchestrator) Agents() []AgentInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []AgentInfo
	for _, role := range SpecialistRoles {
		if a, ok := o.specialists[role]; ok {
			out = append(out, AgentInfo{Role: role, Name: a.Name, ID: a.ID})
		}
	}
	if o.coordinator != nil {
		out = append(out, AgentInfo{Role: RoleCoordinator, Name: o.coordinator.Name, ID: o.coordinator.ID})
	}
	return out
}

// Ready reports whether the coordinator exists.
func (o *Orchestrator) Ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.coordinator != nil
}

// ThreadID returns the default thread, or "" before initialization.
func (o *Orchestrator) ThreadID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.thread == nil {
		return ""
	}
	return o.thread.ID
}

// NewThread creates an additional thread for a separate conversation.
func (o *Orchestrator) NewThread(ctx context.Context) (string, error) {
	thread, err := o.platform.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

// DeleteThread deletes a thread created with NewThread.
func (o *Orchestrator) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == o.ThreadID() {
		return errors.New("the default thread is deleted by Cleanup")
	}
	return o.platform.DeleteThread(ctx, threadID)
}

// Cleanup deletes the coordinator, the specialists, the default thread, the
// vector store and uploaded files, then closes the sales store. It keeps
// going after failures and returns all of them joined. Resources that are
// already gone are not errors.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	o.mu.Lock()
	coordinator := o.coordinator
	specialists := o.specialists
	thread := o.thread
	vectorStore := o.vectorStore
	files := o.files
	o.coordinator = nil
	o.specialists = make(map[AgentRole]*platform.Agent)
	o.thread = nil
	o.vectorStore = nil
	o.files = nil
	o.mu.Unlock()

	var errs []error
	record := func(err error, what string) {
		if err == nil {
			o.progress("Deleted %s", what)
			return
		}
		if platform.IsNotFound(err) {
			o.logger.Debug("Already deleted", zap.String("resource", what))
			return
		}
		errs = append(errs, err)
	}

	if coordinator != nil {
		record(o.platform.DeleteAgent(ctx, coordinator.ID), "coordinator agent")
	}

	roles := make([]string, 0, len(specialists))
	for role := range specialists {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	for _, role := range roles {
		agent := specialists[AgentRole(role)]
		record(o.platform.DeleteAgent(ctx, agent.ID), role+" agent")
	}

	if thread != nil {
		record(o.platform.DeleteThread(ctx, thread.ID), "thread")
	}
	if vectorStore != nil {
		record(o.platform.DeleteVectorStore(ctx, vectorStore.ID), "vector store")
	}
	for _, f := range files {
		record(o.platform.DeleteFile(ctx, f.ID), "file "+f.Filename)
	}

	if o.opts.SalesStore != nil {
		if err := o.opts.SalesStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sales database: %w", err))
		} else {
			o.progress("Database connection closed")
		}
	}
	return errors.Join(errs...)
}
