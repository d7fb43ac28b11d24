package cmdutils

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowonlabs/crewx/internal/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

func init() { color.NoColor = true }

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, agent.Report{
		RootID: "r1",
		Results: []schema.QueryResult{
			{AgentID: "claude", Success: true, Content: " looks good \n"},
			{AgentID: "gemini", Error: "timeout"},
		},
		Delegations: []agent.Delegation{{
			Round: 1, From: "claude",
			Results: []schema.QueryResult{{AgentID: "codex", Success: true, Content: "done"}},
		}},
		Errors: []string{"unknown agent @nobody"},
	})

	assert.Equal(t,
		"✓ @claude\nlooks good\n\n"+
			"✗ @gemini\ntimeout\n\n"+
			"✓ @claude -> @codex (round 1)\ndone\n\n"+
			"! unknown agent @nobody\n"+
			"root r1\n",
		buf.String())
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, schema.QueryResult{AgentID: "claude", Success: true, Content: "hi"}))
	assert.JSONEq(t, `{"agentId":"claude","success":true,"content":"hi"}`, buf.String())
}

func TestMark(t *testing.T) {
	assert.Equal(t, "✓", Mark(true))
	assert.Equal(t, "✗", Mark(false))
}
