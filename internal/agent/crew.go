package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/callstack"
	"github.com/sowonlabs/crewx/internal/dispatch"
	"github.com/sowonlabs/crewx/internal/mention"
	"github.com/sowonlabs/crewx/internal/metrics"
	"github.com/sowonlabs/crewx/internal/schema"
	"github.com/sowonlabs/crewx/internal/shared/llmutils"
)

var (
	ErrEmptyInput = errors.New("nothing to run: input is empty")
	ErrNoAgents   = errors.New("no known agent addressed")
)

// Directory lists the agents a crew may address.
type Directory interface {
	AgentIDs() []string
	Has(agentID string) bool
}

// CrewSettings tunes root-request handling.
type CrewSettings struct {
	DefaultAgent   string
	MaxDepth       int
	Concurrency    int
	Delegation     bool
	QueryTimeout   time.Duration
	ExecuteTimeout time.Duration
}

// RunRequest is one root request: free text with optional leading mentions.
type RunRequest struct {
	Text    string
	Mode    schema.Mode
	Context string
}

// Delegation holds the results of requests one agent issued by starting its
// response with mentions.
type Delegation struct {
	Round   int                  `json:"round"`
	From    string               `json:"from"`
	Results []schema.QueryResult `json:"results"`
}

// Report is everything produced for one root request.
type Report struct {
	RootID      string               `json:"rootId"`
	Parsed      mention.Parsed       `json:"-"`
	Results     []schema.QueryResult `json:"results"`
	Delegations []Delegation         `json:"delegations,omitempty"`
	Errors      []string             `json:"errors,omitempty"`
}

// OK reports whether every top-level result succeeded.
func (r Report) OK() bool {
	if len(r.Results) == 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}
	return true
}

// Merge renders the report as one text block per result.
func (r Report) Merge() string {
	var blocks []string
	for _, res := range r.Results {
		blocks = append(blocks, formatResult("@"+res.AgentID, res))
	}
	for _, d := range r.Delegations {
		for _, res := range d.Results {
			blocks = append(blocks, formatResult(fmt.Sprintf("@%s -> @%s", d.From, res.AgentID), res))
		}
	}
	if len(blocks) == 0 && len(r.Errors) > 0 {
		return strings.Join(r.Errors, "\n")
	}
	return strings.Join(blocks, "\n\n")
}

func formatResult(label string, res schema.QueryResult) string {
	if !res.Success {
		return fmt.Sprintf("[%s] error: %s", label, res.Error)
	}
	return fmt.Sprintf("[%s]\n%s", label, strings.TrimSpace(res.Content))
}

// Crew turns root requests into dispatched agent calls.
type Crew struct {
	dir      Directory
	invoker  schema.AgentInvoker
	pub      bus.Publisher
	metrics  *metrics.Metrics
	settings CrewSettings
}

// NewCrew creates a crew. pub and m may be nil.
func NewCrew(dir Directory, invoker schema.AgentInvoker, pub bus.Publisher, m *metrics.Metrics, settings CrewSettings) *Crew {
	if settings.DefaultAgent == "" {
		settings.DefaultAgent = "claude"
	}
	if settings.MaxDepth <= 0 {
		settings.MaxDepth = callstack.DefaultMaxDepth
	}
	return &Crew{dir: dir, invoker: invoker, pub: pub, metrics: m, settings: settings}
}

// Agents returns the ids the crew can address.
func (c *Crew) Agents() []string { return c.dir.AgentIDs() }

// Run parses req.Text, dispatches one request per addressed agent and, when
// delegation is enabled, follows responses that address further agents.
// Text without a leading mention goes to the default agent.
func (c *Crew) Run(ctx context.Context, req RunRequest) (Report, error) {
	mode := req.Mode
	if !mode.Valid() {
		mode = schema.ModeQuery
	}

	sess, d := c.newRoot()
	report := Report{RootID: sess.Tracker().RootID()}

	parsed := mention.Parse(req.Text, c.dir.AgentIDs())
	report.Parsed = parsed
	report.Errors = append(report.Errors, parsed.Errors...)
	for _, e := range parsed.Errors {
		slog.Warn("Mention error", "root", report.RootID, "err", e)
	}

	var reqs []schema.QueryRequest
	switch {
	case parsed.HasTasks():
		reqs = requestsFor(parsed, req.Context)
	case len(parsed.Errors) > 0:
		return report, fmt.Errorf("%w: %s", ErrNoAgents, strings.Join(parsed.Errors, "; "))
	case len(parsed.UnmatchedText) > 0:
		reqs = []schema.QueryRequest{{
			AgentID: c.settings.DefaultAgent,
			Prompt:  strings.Join(parsed.UnmatchedText, "\n"),
			Context: req.Context,
		}}
	}
	if len(reqs) == 0 || (allEmpty(reqs) && req.Context == "") {
		return report, ErrEmptyInput
	}

	slog.Info("Running root request",
		"root", report.RootID,
		"mode", mode,
		"agents", len(reqs),
		"text", llmutils.Truncate(req.Text, 80),
	)

	results, err := d.DispatchAll(ctx, reqs, c.options(mode, len(reqs), 0))
	if err != nil {
		return report, err
	}
	report.Results = results

	if c.settings.Delegation {
		c.delegate(ctx, sess, d, mode, results, &report)
	}
	return report, nil
}

// Ask invokes one agent directly, without mention parsing, as its own root
// request.
func (c *Crew) Ask(ctx context.Context, mode schema.Mode, req schema.QueryRequest) (schema.QueryResult, error) {
	if !c.dir.Has(req.AgentID) {
		return schema.QueryResult{}, fmt.Errorf("%w: @%s", dispatch.ErrUnknownAgent, req.AgentID)
	}
	_, d := c.newRoot()
	results, err := d.DispatchAll(ctx, []schema.QueryRequest{req}, c.options(mode, 1, 0))
	if err != nil {
		return schema.QueryResult{}, err
	}
	return results[0], nil
}

func (c *Crew) newRoot() (*Session, *dispatch.Dispatcher) {
	tracker := callstack.New(uuid.NewString(), c.settings.MaxDepth, c.pub)
	sess := NewSession(tracker, c.invoker, c.pub, c.metrics)
	return sess, dispatch.New(sess, c.dir.Has)
}

// options builds the dispatch options for n requests issued at depth.
// Sibling calls each hold a frame on the shared tracker while in flight, so
// the limit never exceeds the frames left below MaxDepth. Requests beyond it
// queue instead of failing the depth check.
func (c *Crew) options(mode schema.Mode, n, depth int) dispatch.Options {
	c.metrics.Batch(n)
	timeout := c.settings.QueryTimeout
	if mode == schema.ModeExecute {
		timeout = c.settings.ExecuteTimeout
	}
	limit := c.settings.Concurrency
	if limit <= 0 {
		limit = min(n, dispatch.DefaultConcurrency)
	}
	limit = min(limit, max(c.settings.MaxDepth-depth, 1))
	return dispatch.Options{Mode: mode, ConcurrencyLimit: limit, Timeout: timeout}
}

// delegate runs follow-up rounds for responses that begin with mentions.
// Each delegating agent keeps a frame on the stack until the whole root
// request finishes, so every round runs one level deeper and the loop stops
// once the tracker refuses further pushes.
func (c *Crew) delegate(
	ctx context.Context,
	sess *Session,
	d *dispatch.Dispatcher,
	mode schema.Mode,
	current []schema.QueryResult,
	report *Report,
) {
	tracker := sess.Tracker()
	ids := c.dir.AgentIDs()

	var held []callstack.Frame
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			tracker.Release(held[i])
		}
	}()

	type origin struct {
		from       string
		start, end int
	}

	for round := 1; round <= tracker.MaxDepth() && ctx.Err() == nil; round++ {
		var (
			reqs    []schema.QueryRequest
			origins []origin
		)
		for _, res := range current {
			if !res.Success || !mention.HasLeadingMention(res.Content) {
				continue
			}
			parsed := mention.Parse(res.Content, ids)
			if !parsed.HasTasks() {
				continue
			}
			report.Errors = append(report.Errors, parsed.Errors...)

			next := requestsFor(parsed, res.Content)
			frame, err := tracker.Push(res.AgentID, mode)
			if err != nil {
				slog.Warn("Delegation stopped", "root", report.RootID, "from", res.AgentID, "err", err)
				failed := make([]schema.QueryResult, len(next))
				for i, r := range next {
					failed[i] = schema.Failed(r.AgentID, err.Error())
				}
				report.Delegations = append(report.Delegations, Delegation{Round: round, From: res.AgentID, Results: failed})
				continue
			}
			held = append(held, frame)

			slog.Info("Delegating", "root", report.RootID, "from", res.AgentID, "to", parsed.Agents(), "round", round)
			origins = append(origins, origin{from: res.AgentID, start: len(reqs), end: len(reqs) + len(next)})
			reqs = append(reqs, next...)
		}
		if len(reqs) == 0 {
			return
		}

		results, err := d.DispatchAll(ctx, reqs, c.options(mode, len(reqs), tracker.CurrentDepth()))
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return
		}
		for _, o := range origins {
			report.Delegations = append(report.Delegations, Delegation{
				Round:   round,
				From:    o.from,
				Results: results[o.start:o.end],
			})
		}
		current = results
	}
}

// requestsFor expands parsed tasks into one request per (task, agent).
func requestsFor(parsed mention.Parsed, contextText string) []schema.QueryRequest {
	var reqs []schema.QueryRequest
	for _, t := range parsed.Tasks {
		for _, id := range t.Agents {
			reqs = append(reqs, schema.QueryRequest{
				AgentID: id,
				Prompt:  t.Task,
				Context: contextText,
				Model:   t.Model(id),
			})
		}
	}
	return reqs
}

func allEmpty(reqs []schema.QueryRequest) bool {
	for _, r := range reqs {
		if strings.TrimSpace(r.Prompt) != "" {
			return false
		}
	}
	return true
}
