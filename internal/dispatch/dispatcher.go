// Package dispatch runs independent agent requests concurrently with a
// bounded level of parallelism.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sowonlabs/crewx/internal/schema"
)

// DefaultConcurrency caps in-flight requests when Options leaves it unset.
const DefaultConcurrency = 8

// Result error texts for requests that did not run to completion.
const (
	ErrTextCancelled = "cancelled"
	ErrTextTimeout   = "timeout"
)

var (
	ErrNoRequests   = errors.New("no requests to dispatch")
	ErrUnknownAgent = errors.New("unknown agent")
)

// Caller performs one agent invocation. It owns the call-stack frame for
// the invocation and never panics or returns an error; failures are encoded
// in the result.
type Caller interface {
	Call(ctx context.Context, mode schema.Mode, req schema.QueryRequest) schema.QueryResult
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, mode schema.Mode, req schema.QueryRequest) schema.QueryResult

func (f CallerFunc) Call(ctx context.Context, mode schema.Mode, req schema.QueryRequest) schema.QueryResult {
	return f(ctx, mode, req)
}

// Options controls one DispatchAll call.
type Options struct {
	Mode             schema.Mode
	ConcurrencyLimit int           // <= 0 means min(len(requests), DefaultConcurrency)
	Timeout          time.Duration // per request; 0 disables
}

// Dispatcher fans a list of requests out to a Caller.
type Dispatcher struct {
	caller Caller
	known  func(agentID string) bool
}

// New creates a Dispatcher. known validates agent ids up front; nil accepts
// every id.
func New(caller Caller, known func(agentID string) bool) *Dispatcher {
	return &Dispatcher{caller: caller, known: known}
}

// DispatchAll runs every request and returns one result per request in the
// same order. A failing request never affects its siblings. The call only
// returns an error for an empty list or an unknown agent id, in which case
// nothing is started.
//
// When ctx is cancelled, results that already completed are kept, in-flight
// calls see the cancellation, and requests that had not started are never
// started. Every such request reports ErrTextCancelled.
func (d *Dispatcher) DispatchAll(ctx context.Context, reqs []schema.QueryRequest, opts Options) ([]schema.QueryResult, error) {
	if len(reqs) == 0 {
		return nil, ErrNoRequests
	}
	if d.known != nil {
		for _, r := range reqs {
			if !d.known(r.AgentID) {
				return nil, fmt.Errorf("%w: @%s", ErrUnknownAgent, r.AgentID)
			}
		}
	}

	mode := opts.Mode
	if !mode.Valid() {
		mode = schema.ModeQuery
	}
	limit := opts.ConcurrencyLimit
	if limit <= 0 {
		limit = min(len(reqs), DefaultConcurrency)
	}

	results := make([]schema.QueryResult, len(reqs))
	for i, r := range reqs {
		results[i] = schema.Failed(r.AgentID, ErrTextCancelled)
	}

	slog.Debug("dispatch", "requests", len(reqs), "limit", limit, "mode", mode)

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// g.Go may have blocked on the limit while ctx was cancelled.
			if ctx.Err() != nil {
				return nil
			}
			results[i] = d.run(ctx, mode, req, opts.Timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (d *Dispatcher) run(ctx context.Context, mode schema.Mode, req schema.QueryRequest, timeout time.Duration) schema.QueryResult {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res := d.caller.Call(callCtx, mode, req)
	res.AgentID = req.AgentID
	if res.Success {
		return res
	}

	if !endedByContext(callCtx, res.Error) {
		return res
	}
	switch {
	case ctx.Err() != nil:
		res.Error = ErrTextCancelled
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		slog.Warn("agent request timed out", "agent", req.AgentID, "timeout", timeout)
		res.Error = ErrTextTimeout
	}
	return res
}

// endedByContext reports whether a failed call stopped because callCtx was
// done. A provider error that races with a later cancellation keeps its own
// text.
func endedByContext(callCtx context.Context, reason string) bool {
	if callCtx.Err() == nil {
		return false
	}
	return strings.Contains(reason, context.Canceled.Error()) ||
		strings.Contains(reason, context.DeadlineExceeded.Error())
}
