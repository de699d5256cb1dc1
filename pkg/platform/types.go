package platform

// Tool types understood by the agent service.
const (
	ToolTypeFunction        = "function"
	ToolTypeCodeInterpreter = "code_interpreter"
	ToolTypeFileSearch      = "file_search"
	ToolTypeConnectedAgent  = "connected_agent"
	ToolTypeOpenAPI         = "openapi"
	ToolTypeBingGrounding   = "bing_grounding"
)

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "assistant"
)

// ToolDefinition is one entry of an agent's tools list. Exactly one of the
// type-specific fields is set, matching Type.
type ToolDefinition struct {
	Type           string                    `json:"type"`
	Function       *FunctionDefinition       `json:"function,omitempty"`
	ConnectedAgent *ConnectedAgentDefinition `json:"connected_agent,omitempty"`
	OpenAPI        *OpenAPIDefinition        `json:"openapi,omitempty"`
	BingGrounding  *BingGroundingDefinition  `json:"bing_grounding,omitempty"`
}

// FunctionDefinition declares a locally executed function.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ConnectedAgentDefinition lets one agent call another as a tool.
type ConnectedAgentDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// OpenAPIDefinition lets an agent call an HTTP API described by an OpenAPI document.
type OpenAPIDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Spec        map[string]any `json:"spec"`
	Auth        OpenAPIAuth    `json:"auth"`
}

// OpenAPIAuth selects how the service authenticates to the API.
type OpenAPIAuth struct {
	Type string `json:"type"`
}

// AnonymousAuth is used for APIs without authentication.
var AnonymousAuth = OpenAPIAuth{Type: "anonymous"}

// BingGroundingDefinition grounds answers in Bing search results.
type BingGroundingDefinition struct {
	SearchConfigurations []BingSearchConfiguration `json:"search_configurations"`
}

// BingSearchConfiguration names the Bing connection to use.
type BingSearchConfiguration struct {
	ConnectionID string `json:"connection_id"`
}

// ToolResources carries the resources referenced by built-in tools.
type ToolResources struct {
	CodeInterpreter *CodeInterpreterResource `json:"code_interpreter,omitempty"`
	FileSearch      *FileSearchResource      `json:"file_search,omitempty"`
}

// CodeInterpreterResource lists files available to the code interpreter.
type CodeInterpreterResource struct {
	FileIDs []string `json:"file_ids,omitempty"`
}

// FileSearchResource lists vector stores searched by file search.
type FileSearchResource struct {
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

// IsEmpty reports whether no resource is set.
func (r *ToolResources) IsEmpty() bool {
	return r == nil || (r.CodeInterpreter == nil && r.FileSearch == nil)
}

// Agent is a hosted agent.
type Agent struct {
	ID            string            `json:"id"`
	CreatedAt     int64             `json:"created_at,omitempty"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Model         string            `json:"model"`
	Instructions  string            `json:"instructions,omitempty"`
	Tools         []ToolDefinition  `json:"tools,omitempty"`
	ToolResources *ToolResources    `json:"tool_resources,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CreateAgentParams is the body of an agent creation request.
type CreateAgentParams struct {
	Model         string            `json:"model"`
	Name          string            `json:"name,omitempty"`
	Description   string            `json:"description,omitempty"`
	Instructions  string            `json:"instructions,omitempty"`
	Tools         []ToolDefinition  `json:"tools,omitempty"`
	ToolResources *ToolResources    `json:"tool_resources,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Thread is a server-side conversation.
type Thread struct {
	ID        string            `json:"id"`
	CreatedAt int64             `json:"created_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Message is one message on a thread.
type Message struct {
	ID        string           `json:"id"`
	ThreadID  string           `json:"thread_id"`
	Role      string           `json:"role"`
	Content   []MessageContent `json:"content"`
	AgentID   string           `json:"assistant_id,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	CreatedAt int64            `json:"created_at,omitempty"`
}

// MessageContent is one content block of a message.
type MessageContent struct {
	Type      string        `json:"type"`
	Text      *MessageText  `json:"text,omitempty"`
	ImageFile *MessageImage `json:"image_file,omitempty"`
}

// MessageText is a text content block.
type MessageText struct {
	Value       string           `json:"value"`
	Annotations []TextAnnotation `json:"annotations,omitempty"`
}

// TextAnnotation points at a citation or generated file inside a text block.
type TextAnnotation struct {
	Type         string             `json:"type"`
	Text         string             `json:"text"`
	FilePath     *AnnotationFileRef `json:"file_path,omitempty"`
	FileCitation *AnnotationFileRef `json:"file_citation,omitempty"`
}

// AnnotationFileRef references a file produced or cited by an agent.
type AnnotationFileRef struct {
	FileID string `json:"file_id"`
}

// MessageImage is an image produced by the code interpreter.
type MessageImage struct {
	FileID string `json:"file_id"`
}

// Text returns the first text block of the message.
func (m *Message) Text() (string, bool) {
	for _, c := range m.Content {
		if c.Text != nil {
			return c.Text.Value, true
		}
	}
	return "", false
}

// FileIDs returns files referenced by the message: images and annotated files.
func (m *Message) FileIDs() []string {
	var ids []string
	for _, c := range m.Content {
		if c.ImageFile != nil {
			ids = append(ids, c.ImageFile.FileID)
		}
		if c.Text == nil {
			continue
		}
		for _, a := range c.Text.Annotations {
			if a.FilePath != nil {
				ids = append(ids, a.FilePath.FileID)
			}
		}
	}
	return ids
}

// CreateMessageParams is the body of a message creation request.
type CreateMessageParams struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageList is one page of messages.
type MessageList struct {
	Data    []Message `json:"data"`
	FirstID string    `json:"first_id"`
	LastID  string    `json:"last_id"`
	HasMore bool      `json:"has_more"`
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// IsTerminal reports whether the run can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCancelled, RunStatusFailed, RunStatusCompleted, RunStatusExpired, RunStatusIncomplete:
		return true
	default:
		return false
	}
}

// Run is one execution of an agent on a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	AgentID        string          `json:"assistant_id"`
	Status         RunStatus       `json:"status"`
	LastError      *RunError       `json:"last_error,omitempty"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	CreatedAt      int64           `json:"created_at,omitempty"`
	CompletedAt    int64           `json:"completed_at,omitempty"`
	Usage          *RunUsage       `json:"usage,omitempty"`
}

// RunError describes why a run failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface for RunError
func (e *RunError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// RunUsage reports token consumption of a run.
type RunUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// RequiredAction is set when the run waits for local tool outputs.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputs lists the tool calls waiting for outputs.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is a function call requested by the agent.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function FunctionCallSpec `json:"function"`
}

// FunctionCallSpec names the function and its JSON arguments.
type FunctionCallSpec struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CreateRunParams is the body of a run creation request.
type CreateRunParams struct {
	AgentID                string `json:"assistant_id"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

// ToolOutput answers one tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// File is an uploaded file.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

// VectorStoreStatus is the indexing state of a vector store.
type VectorStoreStatus string

// Vector store statuses.
const (
	VectorStoreInProgress VectorStoreStatus = "in_progress"
	VectorStoreCompleted  VectorStoreStatus = "completed"
	VectorStoreExpired    VectorStoreStatus = "expired"
)

// VectorStore is a hosted embedding index used by file search.
type VectorStore struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     VectorStoreStatus `json:"status"`
	FileCounts VectorStoreCounts `json:"file_counts"`
}

// VectorStoreCounts tracks file processing inside a vector store.
type VectorStoreCounts struct {
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// CreateVectorStoreParams is the body of a vector store creation request.
type CreateVectorStoreParams struct {
	Name    string   `json:"name"`
	FileIDs []string `json:"file_ids"`
}

// DeletionStatus is returned by delete endpoints.
type DeletionStatus struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
