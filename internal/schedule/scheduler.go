// Package schedule runs configured mention texts on cron expressions.
//
// Each firing is an ordinary root request through the crew. When the schedule
// names a Slack channel the merged reply is published on the message bus for
// the channel manager to deliver; otherwise it is only logged.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/sowonlabs/crewx/internal/agent"
	"github.com/sowonlabs/crewx/internal/bus"
	"github.com/sowonlabs/crewx/internal/config"
	"github.com/sowonlabs/crewx/internal/schema"
	"github.com/sowonlabs/crewx/internal/shared/llmutils"
)

var (
	ErrDuplicate = errors.New("schedule already registered")
	ErrNotFound  = errors.New("schedule not found")
)

// Outbox receives replies destined for a chat channel. *bus.MessageBus
// satisfies it.
type Outbox interface {
	PublishOutbound(msg bus.OutboundMessage)
}

// Entry describes one registered schedule.
type Entry struct {
	Name    string
	Spec    string
	Text    string
	Mode    schema.Mode
	Channel string
	Next    time.Time // zero until the scheduler is started
	Prev    time.Time
}

type job struct {
	cfg config.ScheduleConfig
	id  robfigcron.EntryID
}

// Scheduler owns a robfig cron instance and the schedules registered on it.
type Scheduler struct {
	runner agent.Runner
	outbox Outbox
	cron   *robfigcron.Cron

	mu   sync.Mutex
	jobs map[string]job
	ctx  context.Context
}

// Parser accepts five-field expressions and descriptors such as @daily or
// @every 1h.
var Parser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor,
)

func New(runner agent.Runner, outbox Outbox) *Scheduler {
	logger := slogLogger{}
	return &Scheduler{
		runner: runner,
		outbox: outbox,
		cron: robfigcron.New(
			robfigcron.WithParser(Parser),
			robfigcron.WithLogger(logger),
			robfigcron.WithChain(robfigcron.Recover(logger), robfigcron.SkipIfStillRunning(logger)),
		),
		jobs: make(map[string]job),
		ctx:  context.Background(),
	}
}

// Add validates cfg and registers it. It ignores cfg.Enabled; AddAll skips
// disabled schedules.
func (s *Scheduler) Add(cfg config.ScheduleConfig) error {
	if cfg.Name == "" {
		return errors.New("schedule needs a name")
	}
	if cfg.Text == "" {
		return fmt.Errorf("schedule %q has no text", cfg.Name)
	}
	if _, err := Parser.Parse(cfg.Cron); err != nil {
		return fmt.Errorf("schedule %q: invalid cron %q: %w", cfg.Name, cfg.Cron, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[cfg.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, cfg.Name)
	}
	id, err := s.cron.AddFunc(cfg.Cron, func() { s.fire(cfg) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", cfg.Name, err)
	}
	s.jobs[cfg.Name] = job{cfg: cfg, id: id}
	slog.Info("Schedule added", "name", cfg.Name, "cron", cfg.Cron, "channel", cfg.Channel)
	return nil
}

// AddAll registers every enabled schedule and returns how many were added.
func (s *Scheduler) AddAll(cfgs []config.ScheduleConfig) (int, error) {
	n := 0
	for _, cfg := range cfgs {
		if !cfg.IsEnabled() {
			slog.Info("Schedule disabled, skipping", "name", cfg.Name)
			continue
		}
		if err := s.Add(cfg); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// List returns the registered schedules sorted by name.
func (s *Scheduler) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.jobs))
	for _, j := range s.jobs {
		e := s.cron.Entry(j.id)
		out = append(out, Entry{
			Name:    j.cfg.Name,
			Spec:    j.cfg.Cron,
			Text:    j.cfg.Text,
			Mode:    schema.ParseMode(j.cfg.Mode),
			Channel: j.cfg.Channel,
			Next:    e.Next,
			Prev:    e.Prev,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RunNow fires the named schedule synchronously and returns the reply.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.run(ctx, j.cfg)
}

// Start runs the cron loop until ctx is cancelled, then waits for running
// jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	slog.Info("Scheduler started", "schedules", n)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) fire(cfg config.ScheduleConfig) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_, _ = s.run(ctx, cfg)
}

func (s *Scheduler) run(ctx context.Context, cfg config.ScheduleConfig) (string, error) {
	start := time.Now()
	slog.Info("Schedule firing", "name", cfg.Name)

	report, err := s.runner.Run(ctx, agent.RunRequest{
		Text: cfg.Text,
		Mode: schema.ParseMode(cfg.Mode),
	})
	var reply string
	if err != nil {
		slog.Error("Schedule failed", "name", cfg.Name, "err", err)
		reply = fmt.Sprintf("Scheduled run %q failed: %v", cfg.Name, err)
	} else {
		reply = llmutils.StringOrDefault(report.Merge(), "The agents returned no response.")
		slog.Info("Schedule finished", "name", cfg.Name, "root", report.RootID, "ok", report.OK(), "elapsed", time.Since(start))
	}

	if cfg.Channel == "" {
		slog.Info("Schedule output", "name", cfg.Name, "output", llmutils.Truncate(reply, 500))
	} else if s.outbox != nil {
		ch, chatID := target(cfg.Channel)
		s.outbox.PublishOutbound(bus.NewOutboundMessage(ch, chatID, reply))
	}
	return reply, err
}

// target resolves a schedule's channel setting. A bare id is a Slack
// channel; "channel:chat" names another channel explicitly.
func target(channel string) (bus.ChannelType, string) {
	if ch, chatID := bus.ParseRoutingKey(channel); chatID != "" {
		return ch, chatID
	}
	return bus.ChannelSlack, channel
}

// slogLogger routes robfig's logging through slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
