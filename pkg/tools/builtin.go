package tools

import (
	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// BingGroundingTool grounds answers in Bing search through a project
// connection.
type BingGroundingTool struct {
	BaseTool
	connectionID string
}

// NewBingGroundingTool creates a Bing grounding tool for the connection.
func NewBingGroundingTool(connectionID string) *BingGroundingTool {
	return &BingGroundingTool{
		BaseTool:     NewBaseTool(platform.ToolTypeBingGrounding, "Search the web with Bing"),
		connectionID: connectionID,
	}
}

// Definition implements Tool.
func (t *BingGroundingTool) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{
		Type: platform.ToolTypeBingGrounding,
		BingGrounding: &platform.BingGroundingDefinition{
			SearchConfigurations: []platform.BingSearchConfiguration{{ConnectionID: t.connectionID}},
		},
	}
}

// FileSearchTool searches the given vector stores.
type FileSearchTool struct {
	BaseTool
	vectorStoreIDs []string
}

// NewFileSearchTool creates a file search tool over vector stores.
func NewFileSearchTool(vectorStoreIDs ...string) *FileSearchTool {
	return &FileSearchTool{
		BaseTool:       NewBaseTool(platform.ToolTypeFileSearch, "Search uploaded documents"),
		vectorStoreIDs: vectorStoreIDs,
	}
}

// Definition implements Tool.
func (t *FileSearchTool) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{Type: platform.ToolTypeFileSearch}
}

// Resources implements Tool.
func (t *FileSearchTool) Resources() *platform.ToolResources {
	return &platform.ToolResources{
		FileSearch: &platform.FileSearchResource{VectorStoreIDs: t.vectorStoreIDs},
	}
}

// CodeInterpreterTool runs Python in the service's sandbox, optionally with
// uploaded files available.
type CodeInterpreterTool struct {
	BaseTool
	fileIDs []string
}

// NewCodeInterpreterTool creates a code interpreter tool.
func NewCodeInterpreterTool(fileIDs ...string) *CodeInterpreterTool {
	return &CodeInterpreterTool{
		BaseTool: NewBaseTool(platform.ToolTypeCodeInterpreter, "Run Python code"),
		fileIDs:  fileIDs,
	}
}

// Definition implements Tool.
func (t *CodeInterpreterTool) Definition() platform.ToolDefinition {
	return platform.ToolDefinition{Type: platform.ToolTypeCodeInterpreter}
}

// Resources implements Tool.
func (t *CodeInterpreterTool) Resources() *platform.ToolResources {
	if len(t.fileIDs) == 0 {
		return nil
	}
	return &platform.ToolResources{
		CodeInterpreter: &platform.CodeInterpreterResource{FileIDs: t.fileIDs},
	}
}
