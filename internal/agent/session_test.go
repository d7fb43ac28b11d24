package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/callstack"
	"github.com/sowonlabs/crewx/internal/metrics"
	"github.com/sowonlabs/crewx/internal/schema"
)

type recorder struct {
	events []bus.Event
}

func (r *recorder) Publish(e bus.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []bus.EventKind {
	out := make([]bus.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind()
	}
	return out
}

func TestSession_QueryPushesAndPops(t *testing.T) {
	rec := &recorder{}
	tr := callstack.New("root", 0, rec)

	var depthDuring int
	var modeDuring schema.Mode
	inv := schema.AgentInvokerFunc(func(ctx context.Context, req schema.InvokeRequest) (string, error) {
		snap := tr.Snapshot()
		depthDuring = len(snap)
		modeDuring = snap[0].Mode
		return "hello from " + req.AgentID, nil
	})
	s := NewSession(tr, inv, rec, nil)

	res := s.Query(context.Background(), schema.QueryRequest{AgentID: "claude", Prompt: "hi"})

	assert.True(t, res.Success)
	assert.Equal(t, "hello from claude", res.Content)
	assert.Equal(t, 1, depthDuring)
	assert.Equal(t, schema.ModeQuery, modeDuring)
	assert.Empty(t, s.CallStack())

	assert.Equal(t, []bus.EventKind{
		bus.EventCallStackUpdated,
		bus.EventAgentStarted,
		bus.EventAgentCompleted,
		bus.EventCallStackUpdated,
	}, rec.kinds())

	started := rec.events[1].(bus.AgentStarted)
	assert.Equal(t, "root", started.RootID)
	assert.Equal(t, schema.ModeQuery, started.Mode)
	completed := rec.events[2].(bus.AgentCompleted)
	assert.True(t, completed.Success)
}

func TestSession_ExecuteTagsFrame(t *testing.T) {
	tr := callstack.New("root", 0, nil)
	var got schema.Mode
	inv := schema.AgentInvokerFunc(func(ctx context.Context, req schema.InvokeRequest) (string, error) {
		got = req.Mode
		assert.Equal(t, schema.ModeExecute, tr.Snapshot()[0].Mode)
		return "ok", nil
	})

	res := NewSession(tr, inv, nil, nil).Execute(context.Background(), schema.QueryRequest{AgentID: "codex"})
	assert.True(t, res.Success)
	assert.Equal(t, schema.ModeExecute, got)
}

func TestSession_InvokerErrorPopsFrame(t *testing.T) {
	rec := &recorder{}
	tr := callstack.New("root", 0, rec)
	inv := schema.AgentInvokerFunc(func(context.Context, schema.InvokeRequest) (string, error) {
		return "", errors.New("cli exited with status 1")
	})

	res := NewSession(tr, inv, rec, nil).Query(context.Background(), schema.QueryRequest{AgentID: "gemini"})

	assert.False(t, res.Success)
	assert.Equal(t, "cli exited with status 1", res.Error)
	assert.Equal(t, 0, tr.CurrentDepth())

	completed := rec.events[2].(bus.AgentCompleted)
	assert.False(t, completed.Success)
	assert.Equal(t, "cli exited with status 1", completed.Error)
}

func TestSession_PanicIsContained(t *testing.T) {
	tr := callstack.New("root", 0, nil)
	inv := schema.AgentInvokerFunc(func(context.Context, schema.InvokeRequest) (string, error) {
		panic("boom")
	})

	res := NewSession(tr, inv, nil, nil).Query(context.Background(), schema.QueryRequest{AgentID: "claude"})

	assert.False(t, res.Success)
	assert.Equal(t, 0, tr.CurrentDepth())
}

func TestSession_RecursionLimitIsBranchLocal(t *testing.T) {
	rec := &recorder{}
	tr := callstack.New("root", 1, rec)
	var nested schema.QueryResult

	var s *Session
	inv := schema.AgentInvokerFunc(func(ctx context.Context, req schema.InvokeRequest) (string, error) {
		nested = s.Query(ctx, schema.QueryRequest{AgentID: "gemini"})
		return "outer done", nil
	})
	s = NewSession(tr, inv, rec, nil)

	res := s.Query(context.Background(), schema.QueryRequest{AgentID: "claude"})

	assert.True(t, res.Success)
	assert.False(t, nested.Success)
	assert.Contains(t, nested.Error, callstack.ErrRecursionLimitExceeded.Error())
	assert.Equal(t, 0, tr.CurrentDepth())
	// the rejected call never started
	for _, e := range rec.events {
		if st, ok := e.(bus.AgentStarted); ok {
			assert.NotEqual(t, "gemini", st.AgentID)
		}
	}
}

func TestSession_NestedCallsSeeGrowingStack(t *testing.T) {
	tr := callstack.New("root", 0, nil)
	var inner []callstack.Frame

	var s *Session
	inv := schema.AgentInvokerFunc(func(ctx context.Context, req schema.InvokeRequest) (string, error) {
		if req.AgentID == "claude" {
			s.Execute(ctx, schema.QueryRequest{AgentID: "copilot"})
			return "outer", nil
		}
		inner = s.CallStack()
		return "inner", nil
	})
	s = NewSession(tr, inv, nil, nil)
	s.Query(context.Background(), schema.QueryRequest{AgentID: "claude"})

	require.Len(t, inner, 2)
	assert.Equal(t, "claude", inner[0].AgentID)
	assert.Equal(t, schema.ModeQuery, inner[0].Mode)
	assert.Equal(t, "copilot", inner[1].AgentID)
	assert.Equal(t, 1, inner[1].Depth)
	assert.Equal(t, schema.ModeExecute, inner[1].Mode)
}

func TestSession_PassesRequestFields(t *testing.T) {
	var got schema.InvokeRequest
	inv := schema.AgentInvokerFunc(func(ctx context.Context, req schema.InvokeRequest) (string, error) {
		got = req
		return "<think>hmm</think>answer", nil
	})
	s := NewSession(callstack.New("root", 0, nil), inv, nil, nil)

	res := s.Query(context.Background(), schema.QueryRequest{AgentID: "claude", Prompt: "p", Context: "c", Model: "opus"})

	assert.Equal(t, schema.InvokeRequest{AgentID: "claude", Prompt: "p", Context: "c", Model: "opus", Mode: schema.ModeQuery}, got)
	assert.Equal(t, "answer", res.Content)
}

func TestSession_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)
	inv := schema.AgentInvokerFunc(func(context.Context, schema.InvokeRequest) (string, error) { return "ok", nil })

	s := NewSession(callstack.New("root", 0, nil), inv, nil, m)
	s.Query(context.Background(), schema.QueryRequest{AgentID: "claude"})
	s.Query(context.Background(), schema.QueryRequest{AgentID: "claude"})

	n, err := testutil.GatherAndCount(reg, "crewx_agent_invocations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
