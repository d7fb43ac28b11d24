// Package agent runs agents on behalf of root requests and chat channels.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/callstack"
	"github.com/sowonlabs/crewx/internal/metrics"
	"github.com/sowonlabs/crewx/internal/schema"
	"github.com/sowonlabs/crewx/internal/shared/llmutils"
)

// Session is the single entry point for invoking an agent within one root
// request. Every call holds a frame on the tracker for exactly as long as the
// invoker runs, and reports its lifecycle on the event bus.
type Session struct {
	tracker *callstack.Tracker
	invoker schema.AgentInvoker
	pub     bus.Publisher
	metrics *metrics.Metrics
}

// NewSession binds an invoker to the tracker of one root request.
// pub and m may be nil.
func NewSession(tracker *callstack.Tracker, invoker schema.AgentInvoker, pub bus.Publisher, m *metrics.Metrics) *Session {
	return &Session{tracker: tracker, invoker: invoker, pub: pub, metrics: m}
}

// Query runs req in read-only mode. The read-only intent is advisory and
// enforced by the provider adapter, not here.
func (s *Session) Query(ctx context.Context, req schema.QueryRequest) schema.QueryResult {
	return s.Call(ctx, schema.ModeQuery, req)
}

// Execute runs req in execute mode.
func (s *Session) Execute(ctx context.Context, req schema.QueryRequest) schema.QueryResult {
	return s.Call(ctx, schema.ModeExecute, req)
}

// CallStack returns a live snapshot of the tracker.
func (s *Session) CallStack() []callstack.Frame {
	return s.tracker.Snapshot()
}

// Tracker returns the tracker this session pushes onto.
func (s *Session) Tracker() *callstack.Tracker {
	return s.tracker
}

// Call pushes a frame, invokes the agent and releases the frame on every
// exit path. It never returns an error; failures are reported in the result.
func (s *Session) Call(ctx context.Context, mode schema.Mode, req schema.QueryRequest) schema.QueryResult {
	start := time.Now()
	reentered := s.tracker.DetectCycle(req.AgentID)

	frame, err := s.tracker.Push(req.AgentID, mode)
	if err != nil {
		slog.Warn("Agent call rejected", "agent", req.AgentID, "mode", mode, "err", err)
		s.metrics.Observe(req.AgentID, string(mode), false, time.Since(start))
		return schema.Failed(req.AgentID, err.Error())
	}
	defer s.tracker.Release(frame)

	if reentered {
		slog.Debug("Agent re-entered", "agent", req.AgentID, "depth", frame.Depth)
	}

	s.publish(bus.AgentStarted{RootID: s.tracker.RootID(), AgentID: req.AgentID, Mode: mode})
	s.metrics.Started(frame.Depth)

	res := s.invoke(ctx, mode, req)

	s.metrics.Finished(req.AgentID, string(mode), res.Success, time.Since(start))
	s.publish(bus.AgentCompleted{
		RootID:  s.tracker.RootID(),
		AgentID: req.AgentID,
		Success: res.Success,
		Error:   res.Error,
	})
	return res
}

func (s *Session) invoke(ctx context.Context, mode schema.Mode, req schema.QueryRequest) (res schema.QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Agent invoker panicked", "agent", req.AgentID, "panic", r)
			res = schema.Failed(req.AgentID, "internal error")
		}
	}()

	slog.Info("Invoking agent",
		"agent", req.AgentID,
		"mode", mode,
		"model", req.Model,
		"prompt", llmutils.Truncate(req.Prompt, 80),
	)

	out, err := s.invoker.Invoke(ctx, schema.InvokeRequest{
		AgentID: req.AgentID,
		Prompt:  req.Prompt,
		Context: req.Context,
		Model:   req.Model,
		Mode:    mode,
	})
	if err != nil {
		slog.Error("Agent failed", "agent", req.AgentID, "mode", mode, "err", err)
		return schema.Failed(req.AgentID, err.Error())
	}
	return schema.QueryResult{AgentID: req.AgentID, Success: true, Content: llmutils.StripThink(out)}
}

func (s *Session) publish(e bus.Event) {
	if s.pub != nil {
		s.pub.Publish(e)
	}
}
