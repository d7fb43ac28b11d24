// Package dependency wires core crewx services using go.uber.org/dig.
package dependency

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"

	"github.com/sowonlabs/crewx/internal/agent"
	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/channels"
	"github.com/sowonlabs/crewx/internal/config"
	"github.com/sowonlabs/crewx/internal/mcp"
	"github.com/sowonlabs/crewx/internal/metrics"
	"github.com/sowonlabs/crewx/internal/providers"
	"github.com/sowonlabs/crewx/internal/schedule"
	"github.com/sowonlabs/crewx/internal/schema"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg       *config.Config
	events    *bus.EventBus
	msgBus    *bus.MessageBus
	registry  *prometheus.Registry
	router    *providers.Router
	crew      *agent.Crew
	loop      *agent.AgentLoop
	channels  *channels.Manager
	scheduler *schedule.Scheduler
	mcpServer *mcp.Server
}

func (c *Container) Config() *config.Config         { return c.cfg }
func (c *Container) Events() *bus.EventBus          { return c.events }
func (c *Container) MessageBus() *bus.MessageBus    { return c.msgBus }
func (c *Container) Registry() *prometheus.Registry { return c.registry }
func (c *Container) Router() *providers.Router      { return c.router }
func (c *Container) Crew() *agent.Crew              { return c.crew }
func (c *Container) AgentLoop() *agent.AgentLoop    { return c.loop }
func (c *Container) Channels() *channels.Manager    { return c.channels }
func (c *Container) Scheduler() *schedule.Scheduler { return c.scheduler }
func (c *Container) MCPServer() *mcp.Server         { return c.mcpServer }

// Version is a named string type so dig can tell the build version apart
// from plain strings.
type Version string

// New builds and wires all core services from cfg.
func New(cfg *config.Config, version Version) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func() Version { return version }); err != nil {
		return nil, err
	}
	if err := d.Provide(newEventBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newMessageBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newMetrics); err != nil {
		return nil, err
	}
	if err := d.Provide(providers.FromConfig); err != nil {
		return nil, err
	}
	if err := d.Provide(newCrew); err != nil {
		return nil, err
	}
	if err := d.Provide(newAgentLoop); err != nil {
		return nil, err
	}
	if err := d.Provide(newChannelManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newScheduler); err != nil {
		return nil, err
	}
	if err := d.Provide(newMCPServer); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		events *bus.EventBus,
		msgBus *bus.MessageBus,
		registry *prometheus.Registry,
		router *providers.Router,
		crew *agent.Crew,
		loop *agent.AgentLoop,
		mgr *channels.Manager,
		scheduler *schedule.Scheduler,
		server *mcp.Server,
	) {
		result = &Container{
			cfg:       cfg,
			events:    events,
			msgBus:    msgBus,
			registry:  registry,
			router:    router,
			crew:      crew,
			loop:      loop,
			channels:  mgr,
			scheduler: scheduler,
			mcpServer: server,
		}
	})
	return result, err
}

// newEventBus creates the lifecycle event bus with a debug-level tap.
func newEventBus() *bus.EventBus {
	events := bus.NewEventBus()
	events.Subscribe(logEvent)
	return events
}

func logEvent(e bus.Event) {
	switch ev := e.(type) {
	case bus.AgentStarted:
		slog.Debug("agent started", "root", ev.RootID, "agent", ev.AgentID, "mode", ev.Mode)
	case bus.AgentCompleted:
		slog.Debug("agent completed", "root", ev.RootID, "agent", ev.AgentID, "success", ev.Success, "err", ev.Error)
	case bus.CallStackUpdated:
		slog.Debug("call stack", "root", ev.RootID, "depth", len(ev.Stack))
	}
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func newMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.MustNew(reg)
}

func newCrew(cfg *config.Config, router *providers.Router, events *bus.EventBus, m *metrics.Metrics) *agent.Crew {
	s := cfg.Settings
	return agent.NewCrew(router, router, events, m, agent.CrewSettings{
		DefaultAgent:   s.DefaultAgent,
		MaxDepth:       s.MaxDepth,
		Concurrency:    s.Concurrency,
		Delegation:     s.Delegation,
		QueryTimeout:   s.TimeoutFor(schema.ModeQuery),
		ExecuteTimeout: s.TimeoutFor(schema.ModeExecute),
	})
}

func newAgentLoop(b *bus.MessageBus, crew *agent.Crew) *agent.AgentLoop {
	return agent.NewAgentLoop(b, crew)
}

func newChannelManager(cfg *config.Config, b *bus.MessageBus) *channels.Manager {
	return channels.NewManager(cfg, b)
}

func newScheduler(cfg *config.Config, crew *agent.Crew, b *bus.MessageBus) (*schedule.Scheduler, error) {
	s := schedule.New(crew, b)
	if _, err := s.AddAll(cfg.Schedules); err != nil {
		return nil, err
	}
	return s, nil
}

func newMCPServer(cfg *config.Config, crew *agent.Crew, v Version) *mcp.Server {
	server := mcp.NewServer(string(v))
	mcp.RegisterTools(server, &mcp.Services{Crew: crew, Agents: cfg.Agents})
	return server
}
