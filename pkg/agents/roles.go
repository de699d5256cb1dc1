package agents

import (
	"fmt"

	"github.com/agent-protocol/contoso-agents/pkg/platform"
)

// AgentRole identifies an agent in the coordinator/specialist pattern.
type AgentRole string

// Agent roles.
const (
	RoleSalesAnalyst     AgentRole = "sales_analyst"
	RoleMarketResearcher AgentRole = "market_researcher"
	RoleReportGenerator  AgentRole = "report_generator"
	RoleCoordinator      AgentRole = "coordinator"
)

// SpecialistRoles lists the roles the coordinator delegates to, in the order
// its tools are declared.
var SpecialistRoles = []AgentRole{RoleSalesAnalyst, RoleMarketResearcher, RoleReportGenerator}

// String implements fmt.Stringer.
func (r AgentRole) String() string {
	return string(r)
}

// ParseRole parses a role name.
func ParseRole(s string) (AgentRole, error) {
	switch r := AgentRole(s); r {
	case RoleSalesAnalyst, RoleMarketResearcher, RoleReportGenerator, RoleCoordinator:
		return r, nil
	}
	return "", fmt.Errorf("unknown agent role %q", s)
}

// AgentConfig describes one hosted agent. Tools lists tool kinds for display;
// the actual definitions are built when the agent is created.
type AgentConfig struct {
	Name             string
	Role             AgentRole
	InstructionsFile string
	Tools            []string
	// Description is what the coordinator sees for the connected-agent tool.
	Description string
}

// DefaultAgentConfigs returns the configuration of every agent keyed by role.
func DefaultAgentConfigs() map[AgentRole]AgentConfig {
	return map[AgentRole]AgentConfig{
		RoleSalesAnalyst: {
			Name:             "Contoso Sales Analyst",
			Role:             RoleSalesAnalyst,
			InstructionsFile: "multi_agent_sales_analyst.txt",
			Tools:            []string{platform.ToolTypeOpenAPI},
			Description:      "Analyzes sales data, creates visualizations, calculates metrics, and identifies trends. Can query the Contoso sales database and create charts.",
		},
		RoleMarketResearcher: {
			Name:             "Contoso Market Researcher",
			Role:             RoleMarketResearcher,
			InstructionsFile: "multi_agent_market_researcher.txt",
			Tools:            []string{platform.ToolTypeBingGrounding, platform.ToolTypeFileSearch},
			Description:      "Researches competitors, market trends, and external data using Bing search and product documentation analysis.",
		},
		RoleReportGenerator: {
			Name:             "Contoso Report Generator",
			Role:             RoleReportGenerator,
			InstructionsFile: "multi_agent_report_generator.txt",
			Tools:            []string{platform.ToolTypeCodeInterpreter},
			Description:      "Creates comprehensive reports by synthesizing information from multiple sources. Can format professional reports and create summaries.",
		},
		RoleCoordinator: {
			Name:             "Contoso Multi-Agent Coordinator",
			Role:             RoleCoordinator,
			InstructionsFile: "multi_agent_coordinator.txt",
			Tools:            []string{platform.ToolTypeConnectedAgent},
			Description:      "Breaks complex requests into tasks and delegates them to the specialist agents.",
		},
	}
}

// TaskResult is the outcome of one task run by the coordinator.
type TaskResult struct {
	AgentRole AgentRole `json:"agent_role"`
	Success   bool      `json:"success"`
	Content   string    `json:"content"`
	// Artifacts are IDs of files the agents produced, such as charts.
	Artifacts []string           `json:"artifacts,omitempty"`
	Error     string             `json:"error,omitempty"`
	Status    platform.RunStatus `json:"status,omitempty"`
	RunID     string             `json:"run_id,omitempty"`
}

// AgentInfo describes a provisioned agent.
type AgentInfo struct {
	Role AgentRole `json:"role"`
	Name string    `json:"name"`
	ID   string    `json:"id"`
}
