package cmd

import (
	"fmt"
	"os"

	"github.com/vcnkl/watchrun/actions"
	"github.com/vcnkl/watchrun/config"
	"github.com/vcnkl/watchrun/exec"
	"github.com/vcnkl/watchrun/logger"

	"github.com/urfave/cli/v2"
)

const usageText = `Watches a directory and its subdirectories for changes. When a change is detected, it runs a command.
usage: watchrun [path] [command]
    [path]      path (recursively) being watched
    [command]   command to execute when change is detected in path
`

func NewApp() *cli.App {
	return &cli.App{
		Name:      "watchrun",
		Usage:     "Run a command once changes under a directory settle",
		ArgsUsage: "<path> <command>",
		Version:   "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional watchrun.yml with command environment settings",
			},
		},
		Action: watch,
	}
}

func watch(ctx *cli.Context) error {
	if ctx.Args().Len() != 2 {
		fmt.Fprint(ctx.App.Writer, usageText)
		return nil
	}

	cfg, err := config.NewConfig(ctx.Args().Get(0), ctx.Args().Get(1), ctx.String("config"))
	if err != nil {
		return cli.Exit("error: "+err.Error(), 1)
	}

	level := cfg.LogLevel()
	if ctx.Bool("debug") {
		level = logger.DebugLevel
	}
	log := newLogger(ctx.App, level)

	runner := exec.NewRunner(&exec.RunnerOptions{
		Env:    exec.ComposeEnv(cfg.Root(), cfg.Options().Env, cfg.Options().Dotenv),
		Stdout: ctx.App.Writer,
		Stderr: ctx.App.ErrWriter,
	})

	action := actions.NewWatchAction(cfg, runner, log)
	result, err := action.Execute(ctx.Context)
	if err != nil {
		return cli.Exit("error: "+err.Error(), 1)
	}

	log.Info("watch stopped",
		logger.Int("triggers", result.Triggers),
		logger.Int("failed", len(result.Failed)),
		logger.Duration("duration", result.Duration))

	return nil
}

func newLogger(app *cli.App, level logger.Level) logger.Logger {
	if f, ok := app.Writer.(*os.File); ok && f == os.Stdout {
		return logger.New(level)
	}
	return logger.NewWithOutput(level, app.Writer)
}
