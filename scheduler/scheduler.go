// Package scheduler turns a stream of filesystem activity into debounced,
// strictly serial command executions.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vcnkl/watchrun/exec"
	"github.com/vcnkl/watchrun/logger"
	"github.com/vcnkl/watchrun/models"
)

const (
	// QuietThreshold is how long activity must be absent before a trigger.
	QuietThreshold = 2000 * time.Millisecond
	// PollInterval is how often the scheduler checks for settled activity.
	PollInterval = 2000 * time.Millisecond
)

type Phase int

const (
	Idle Phase = iota
	Pending
	Firing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Firing:
		return "firing"
	}
	return "unknown"
}

type Runner interface {
	Run(command string) (*models.RunResult, error)
}

type Scheduler struct {
	command  string
	runner   Runner
	log      logger.Logger
	quiet    time.Duration
	interval time.Duration
	now      func() time.Time

	lastActivity atomic.Pointer[time.Time]
	busy         atomic.Bool
	running      atomic.Bool
	triggers     atomic.Int64
	failures     atomic.Int64
	onRun        func(result *models.RunResult, err error)
}

func New(command string, runner Runner, log logger.Logger) *Scheduler {
	return &Scheduler{
		command:  command,
		runner:   runner,
		log:      log,
		quiet:    QuietThreshold,
		interval: PollInterval,
		now:      time.Now,
	}
}

// OnRun registers a callback invoked after every command execution. It must
// be set before Run is called.
func (s *Scheduler) OnRun(fn func(result *models.RunResult, err error)) {
	s.onRun = fn
}

// RecordActivity marks that something changed just now. Safe for concurrent
// use; the latest call wins.
func (s *Scheduler) RecordActivity() {
	t := s.now()
	s.lastActivity.Store(&t)
}

func (s *Scheduler) LastActivity() (time.Time, bool) {
	t := s.lastActivity.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

func (s *Scheduler) State() Phase {
	if s.running.Load() {
		return Firing
	}
	if s.lastActivity.Load() != nil {
		return Pending
	}
	return Idle
}

func (s *Scheduler) Triggers() int {
	return int(s.triggers.Load())
}

func (s *Scheduler) Failures() int {
	return int(s.failures.Load())
}

// Run evaluates the scheduler every poll interval until ctx is done. The
// ticker is stopped while a command runs, so evaluations never overlap a
// running command.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !s.due() {
				continue
			}
			ticker.Stop()
			s.Tick()
			ticker.Reset(s.interval)
		}
	}
}

// Tick performs one evaluation and reports whether the command was run.
// Calls made while a command is already running return false immediately.
func (s *Scheduler) Tick() bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	defer s.busy.Store(false)

	last := s.lastActivity.Load()
	if last == nil || !s.settled(*last) {
		return false
	}

	// A failed swap means newer activity arrived; its window is still open.
	if !s.lastActivity.CompareAndSwap(last, nil) {
		return false
	}

	s.fire(*last)
	return true
}

func (s *Scheduler) due() bool {
	last := s.lastActivity.Load()
	return last != nil && s.settled(*last)
}

func (s *Scheduler) settled(last time.Time) bool {
	return s.now().Sub(last) > s.quiet
}

func (s *Scheduler) fire(lastActivity time.Time) {
	s.running.Store(true)
	defer s.running.Store(false)

	s.triggers.Add(1)
	s.log.Debug("changes settled, running command",
		logger.String("command", s.command),
		logger.Time("last_activity", lastActivity))

	result, err := s.runner.Run(s.command)

	if result != nil {
		s.log.Debug("command finished",
			logger.String("command", s.command),
			logger.Bool("succeeded", err == nil && result.Succeeded()),
			logger.Duration("duration", result.Duration))
	}

	if err != nil {
		s.failures.Add(1)

		var launchErr *exec.LaunchError
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &launchErr):
			s.log.Error("command could not be started", logger.String("command", s.command), logger.Err(err))
		case errors.As(err, &exitErr):
			s.log.Warn("command failed",
				logger.String("command", s.command),
				logger.Int("exit_code", exitErr.ExitCode))
		default:
			s.log.Error("command failed", logger.String("command", s.command), logger.Err(err))
		}
	}

	if s.onRun != nil {
		s.onRun(result, err)
	}
}
