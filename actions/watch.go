package actions

import (
	"context"
	"sync"
	"time"

	"github.com/vcnkl/watchrun/config"
	"github.com/vcnkl/watchrun/logger"
	"github.com/vcnkl/watchrun/models"
	"github.com/vcnkl/watchrun/scheduler"
	"github.com/vcnkl/watchrun/watcher"
)

type WatchAction struct {
	config *config.Config
	runner scheduler.Runner
	log    logger.Logger
}

func NewWatchAction(cfg *config.Config, runner scheduler.Runner, log logger.Logger) *WatchAction {
	return &WatchAction{
		config: cfg,
		runner: runner,
		log:    log,
	}
}

// Execute watches the configured root until ctx is canceled. Only setup
// failures are returned; failed command runs are collected in the result.
func (a *WatchAction) Execute(ctx context.Context) (*models.Result, error) {
	start := time.Now()
	result := &models.Result{}
	job := a.config.Job()

	w, err := watcher.NewWatcher(job.Root)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	sched := scheduler.New(job.Command, a.runner, a.log.WithPrefix("scheduler"))
	sched.OnRun(func(run *models.RunResult, err error) {
		if err == nil {
			return
		}
		failed := models.FailedRun{Command: job.Command, Error: err}
		if run != nil {
			failed.ExitCode = run.ExitCode
		}
		result.Failed = append(result.Failed, failed)
	})

	watchLog := a.log.WithPrefix("watcher")
	w.OnChange(func(path string) {
		watchLog.Debug("change detected", logger.String("path", path))
		sched.RecordActivity()
	})
	w.OnError(func(err error) {
		watchLog.Warn("watch error", logger.Err(err))
	})

	a.log.Info("watching",
		logger.String("path", w.Root()),
		logger.String("command", job.Command))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	wg.Wait()

	result.Triggers = sched.Triggers()
	result.Duration = time.Since(start)
	return result, nil
}
