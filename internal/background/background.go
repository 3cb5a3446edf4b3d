// Package background runs low-rate housekeeping jobs off the robot control
// loop: preference flushes, telemetry snapshots, alert pruning. Jobs run on a
// cron scheduler feeding a small worker pool through a bounded queue, so a
// slow job can never stall the 20ms loop.
package background

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lemonlib/pkg/logx"
)

type Config struct {
	Enabled        bool
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	HistorySize    int
}

type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type runState struct {
	mu      sync.Mutex
	running bool
}

type jobDef struct {
	name    string
	spec    string        // cron spec; empty for interval jobs
	every   time.Duration // interval jobs only
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	state   *runState
}

type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
	state   *runState
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	parser cron.Parser
	c      *cron.Cron
	defs   []jobDef

	queue    chan task
	stopCh   chan struct{}
	stopDone chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// AddCron registers a job on a cron spec. timeout 0 uses the default.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job func(ctx context.Context) error) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("background: job name is empty")
	}
	if job == nil {
		return errors.New("background: job is nil")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("background: %s: bad spec %q: %w", name, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	def := jobDef{name: name, spec: spec, timeout: timeout, job: job, state: &runState{}}
	s.defs = append(s.defs, def)
	if s.c != nil {
		s.registerLocked(&s.defs[len(s.defs)-1])
	}
	return nil
}

// AddInterval registers a job running every `every`. The first run is offset
// by a name-derived phase so jobs registered together don't all fire at once.
func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("background: job name is empty")
	}
	if job == nil {
		return errors.New("background: job is nil")
	}
	if every <= 0 {
		return fmt.Errorf("background: %s: interval must be > 0 (got %v)", name, every)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	def := jobDef{name: name, every: every, timeout: timeout, job: job, state: &runState{}}
	s.defs = append(s.defs, def)
	if s.c != nil {
		s.registerLocked(&s.defs[len(s.defs)-1])
	}
	return nil
}

// Start is idempotent. Does nothing while disabled.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			s.mu.Unlock()
			return // already running
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return
	}

	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	// Fresh queue per run so stale tasks don't survive a stop/start toggle.
	s.queue = make(chan task, s.cfg.QueueSize)
	s.c = cron.New(cron.WithParser(s.parser))

	for i := range s.defs {
		s.registerLocked(&s.defs[i])
	}

	runCtx := s.runCtx
	stopCh := s.stopCh
	queue := s.queue
	workers := s.cfg.Workers

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			s.worker(runCtx, stopCh, queue, idx)
		}()
	}
	s.c.Start()
	s.log.Info("background jobs started",
		logx.Int("workers", workers),
		logx.Int("jobs", len(s.defs)))
}

// Stop halts the cron clock, signals workers and waits best-effort until ctx
// expires.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}

	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.queue = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// History returns recent job runs, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

// registerLocked wires one definition into the running cron instance.
func (s *Service) registerLocked(def *jobDef) {
	queue := s.queue
	timeout := def.timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	enqueue := func() {
		t := task{name: def.name, timeout: timeout, run: def.job, state: def.state}
		select {
		case queue <- t:
		default:
			s.log.Warn("background queue full; job skipped", logx.String("job", def.name))
		}
	}

	if def.spec != "" {
		id, err := s.c.AddFunc(def.spec, enqueue)
		if err != nil {
			s.log.Warn("background job registration failed",
				logx.String("job", def.name), logx.Err(err))
			return
		}
		def.entryID = id
		return
	}
	phase := jobPhase(def.name, def.every)
	first := time.Now().Add(def.every + phase)
	def.entryID = s.c.Schedule(phasedInterval{every: def.every, first: first}, cron.FuncJob(enqueue))
	if phase > 0 {
		s.log.Debug("background job phase",
			logx.String("job", def.name), logx.Duration("offset", phase))
	}
}

// maxJobPhase caps the start offset so hourly jobs still run near startup.
const maxJobPhase = 30 * time.Second

// jobPhase derives the start offset of an interval job from its name. Hashing
// the name instead of randomizing keeps a job's cadence identical across
// restarts while still spreading differently-named jobs apart.
func jobPhase(name string, every time.Duration) time.Duration {
	window := every
	if window > maxJobPhase {
		window = maxJobPhase
	}
	if window <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return time.Duration(h.Sum64() % uint64(window))
}

// phasedInterval fires every `every`, anchored to `first`. Unlike a plain
// @every schedule, later firings keep the first run's phase, so two jobs with
// the same interval but different phases never drift onto the same instant.
type phasedInterval struct {
	every time.Duration
	first time.Time
}

func (p phasedInterval) Next(t time.Time) time.Time {
	if t.Before(p.first) {
		return p.first
	}
	steps := t.Sub(p.first)/p.every + 1
	return p.first.Add(steps * p.every)
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task, idx int) {
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case t := <-queue:
			s.runTask(ctx, t, idx)
		}
	}
}

func (s *Service) runTask(ctx context.Context, t task, idx int) {
	// Overlap policy: skip while a previous run is still going.
	t.state.mu.Lock()
	if t.state.running {
		t.state.mu.Unlock()
		s.log.Debug("background job still running; skipped", logx.String("job", t.name))
		return
	}
	t.state.running = true
	t.state.mu.Unlock()
	defer func() {
		t.state.mu.Lock()
		t.state.running = false
		t.state.mu.Unlock()
	}()

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("background job panicked",
					logx.String("job", t.name),
					logx.Int("worker", idx),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.run(runCtx)
	}()

	dur := time.Since(started)
	item := HistoryItem{Name: t.name, Started: started, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("background job failed",
			logx.String("job", t.name),
			logx.Duration("took", dur),
			logx.Err(err))
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()
}
