// Package scenario replays a scripted set of jobs through a scheduler and records
// every execution decision it makes.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/delaneyj/tickwatch/diag"
	"github.com/delaneyj/tickwatch/scheduler"
)

var (
	ErrDuplicateJob = errors.New("duplicate job name")
	ErrUnknownJob   = errors.New("unknown job")
	ErrUnnamedJob   = errors.New("job without a name")
)

// Scenario is the YAML document flushtrace replays.
type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Limit       int       `yaml:"limit,omitempty"`
	Jobs        []JobSpec `yaml:"jobs"`
	Pre         []JobSpec `yaml:"pre,omitempty"`
	Post        []JobSpec `yaml:"post,omitempty"`
	PostBatch   []JobSpec `yaml:"postBatch,omitempty"`
	Invalidate  []string  `yaml:"invalidate,omitempty"`
}

type JobSpec struct {
	Name         string `yaml:"name"`
	ID           *int   `yaml:"id,omitempty"`
	AllowRecurse bool   `yaml:"allowRecurse,omitempty"`
	// Requeue is how many times the job queues itself again from its body. Negative
	// means forever.
	Requeue int `yaml:"requeue,omitempty"`
	// Queue names main jobs queued from the body.
	Queue    []string `yaml:"queue,omitempty"`
	Deferred bool     `yaml:"deferred,omitempty"`
	Inactive bool     `yaml:"inactive,omitempty"`
	Panic    bool     `yaml:"panic,omitempty"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

type Step struct {
	Pass int
	Kind scheduler.EventKind
	Job  string
}

type Result struct {
	RunID    uuid.UUID
	Scenario string
	Limit    int
	Steps    []Step
	Stats    scheduler.Stats
}

// String renders the trace without the run id so it is stable across runs.
func (r *Result) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "scenario %s limit %d\n", r.Scenario, r.Limit)
	for _, s := range r.Steps {
		if s.Job == "" {
			fmt.Fprintf(&sb, "%d %s\n", s.Pass, s.Kind)
			continue
		}
		fmt.Fprintf(&sb, "%d %s %s\n", s.Pass, s.Kind, s.Job)
	}
	st := r.Stats
	fmt.Fprintf(&sb, "flushes=%d passes=%d jobs=%d pre=%d post=%d skipped=%d errors=%d\n",
		st.Flushes, st.Passes, st.Jobs, st.PreCbs, st.PostCbs, st.Skipped, st.Errors)
	return sb.String()
}

type config struct {
	log   zerolog.Logger
	dev   bool
	limit int
}

type Option func(*config)

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}

func WithDev(dev bool) Option {
	return func(c *config) { c.dev = dev }
}

// WithLimit overrides the scenario's recursion limit when positive.
func WithLimit(limit int) Option {
	return func(c *config) { c.limit = limit }
}

type phase int

const (
	phaseMain phase = iota
	phasePre
	phasePost
)

type runner struct {
	sched *scheduler.Scheduler
	jobs  map[string]*scheduler.Job
	main  map[string]bool
}

// Run queues everything the scenario lists, lets the scheduler tick until idle and
// returns the trace.
func Run(sc *Scenario, opts ...Option) (*Result, error) {
	cfg := config{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	limit := scheduler.DefaultRecursionLimit
	if sc.Limit > 0 {
		limit = sc.Limit
	}
	if cfg.limit > 0 {
		limit = cfg.limit
	}

	res := &Result{RunID: uuid.New(), Scenario: sc.Name, Limit: limit}
	log := cfg.log.With().Str("run", res.RunID.String()).Str("scenario", sc.Name).Logger()

	ticker := scheduler.NewManualTicker()
	report := diag.New(diag.WithLogger(log), diag.WithDev(cfg.dev))
	sched := scheduler.New(ticker,
		scheduler.WithReporter(report),
		scheduler.WithRecursionLimit(limit),
		scheduler.WithTrace(func(ev scheduler.Event) {
			step := Step{Pass: ev.Pass, Kind: ev.Kind}
			if ev.Job != nil {
				step.Job = ev.Job.Name()
			}
			res.Steps = append(res.Steps, step)
		}),
	)

	r := &runner{
		sched: sched,
		jobs:  map[string]*scheduler.Job{},
		main:  map[string]bool{},
	}
	groups := []struct {
		phase phase
		specs []JobSpec
	}{
		{phaseMain, sc.Jobs},
		{phasePre, sc.Pre},
		{phasePost, sc.Post},
		{phasePost, sc.PostBatch},
	}
	for _, g := range groups {
		for _, spec := range g.specs {
			if err := r.define(spec, g.phase); err != nil {
				return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
		}
	}
	for _, g := range groups {
		for _, spec := range g.specs {
			for _, name := range spec.Queue {
				if !r.main[name] {
					return nil, fmt.Errorf("scenario %q: job %q queues %q: %w", sc.Name, spec.Name, name, ErrUnknownJob)
				}
			}
		}
	}
	for _, name := range sc.Invalidate {
		if !r.main[name] {
			return nil, fmt.Errorf("scenario %q: invalidate %q: %w", sc.Name, name, ErrUnknownJob)
		}
	}

	for _, spec := range sc.Jobs {
		if !spec.Deferred {
			sched.QueueJob(r.jobs[spec.Name])
		}
	}
	for _, spec := range sc.Pre {
		sched.QueuePreFlushCb(r.jobs[spec.Name])
	}
	for _, spec := range sc.Post {
		sched.QueuePostFlushCb(r.jobs[spec.Name])
	}
	if len(sc.PostBatch) > 0 {
		batch := make([]*scheduler.Job, 0, len(sc.PostBatch))
		for _, spec := range sc.PostBatch {
			batch = append(batch, r.jobs[spec.Name])
		}
		sched.QueuePostFlushCbs(batch)
	}
	for _, g := range groups {
		for _, spec := range g.specs {
			if spec.Inactive {
				r.jobs[spec.Name].SetActive(false)
			}
		}
	}
	for _, name := range sc.Invalidate {
		sched.InvalidateJob(r.jobs[name])
	}

	log.Debug().Int("limit", limit).Msg("scenario started")
	ticks := ticker.Drain()
	res.Stats = sched.Stats()
	log.Debug().
		Int("ticks", ticks).
		Int("passes", res.Stats.Passes).
		Int("errors", res.Stats.Errors).
		Msg("scenario finished")
	return res, nil
}

func (r *runner) define(spec JobSpec, p phase) error {
	if spec.Name == "" {
		return ErrUnnamedJob
	}
	if _, ok := r.jobs[spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, spec.Name)
	}

	job := scheduler.NewJob(r.body(spec, p)).
		WithName(spec.Name).
		SetAllowRecurse(spec.AllowRecurse)
	if spec.ID != nil {
		job.WithID(*spec.ID)
	}
	r.jobs[spec.Name] = job
	if p == phaseMain {
		r.main[spec.Name] = true
	}
	return nil
}

func (r *runner) body(spec JobSpec, p phase) func() {
	remaining := spec.Requeue
	return func() {
		if spec.Panic {
			panic(fmt.Sprintf("job %s failed", spec.Name))
		}
		for _, name := range spec.Queue {
			r.sched.QueueJob(r.jobs[name])
		}
		if remaining == 0 {
			return
		}
		if remaining > 0 {
			remaining--
		}
		self := r.jobs[spec.Name]
		switch p {
		case phasePre:
			r.sched.QueuePreFlushCb(self)
		case phasePost:
			r.sched.QueuePostFlushCb(self)
		default:
			r.sched.QueueJob(self)
		}
	}
}
