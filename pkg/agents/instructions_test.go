package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionLoaderEmbedded(t *testing.T) {
	l := NewInstructionLoader("")
	for role, cfg := range DefaultAgentConfigs() {
		text, err := l.Load(cfg.InstructionsFile)
		require.NoError(t, err, role)
		assert.NotEmpty(t, text, role)
	}

	_, err := l.Load("missing.txt")
	assert.Error(t, err)
	_, err = l.Load("../instructions/multi_agent_coordinator.txt")
	assert.Error(t, err)
}

func TestInstructionLoaderOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "multi_agent_coordinator.txt"), []byte("  custom coordinator\n"), 0o600))

	l := NewInstructionLoader(dir)
	text, err := l.Load("multi_agent_coordinator.txt")
	require.NoError(t, err)
	assert.Equal(t, "custom coordinator", text)

	text, err = l.Load("multi_agent_sales_analyst.txt")
	require.NoError(t, err)
	assert.Contains(t, text, "Contoso Sales Analyst")
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("market_researcher")
	require.NoError(t, err)
	assert.Equal(t, RoleMarketResearcher, r)

	_, err = ParseRole("janitor")
	assert.Error(t, err)
}
