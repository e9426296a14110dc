package config

import (
	"fmt"
	"strings"

	"github.com/vcnkl/watchrun/logger"
	"github.com/vcnkl/watchrun/models"
)

type Config struct {
	job     *models.Job
	options *Options
}

// NewConfig resolves the watch root to an absolute path and, when
// optionsPath is set, loads the YAML options file. The root is not checked
// for existence here; the watcher reports that.
func NewConfig(root, command, optionsPath string) (*Config, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("watch path must not be empty")
	}

	absRoot, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	options := &Options{}
	if optionsPath != "" {
		options, err = loadOptions(optionsPath)
		if err != nil {
			return nil, err
		}
	}
	options.SetDefaults()

	if _, err = logger.ParseLevel(options.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid options file %s: %w", optionsPath, err)
	}

	return &Config{
		job: &models.Job{
			Root:    absRoot,
			Command: command,
		},
		options: options,
	}, nil
}

func (c *Config) Job() *models.Job {
	return c.job
}

func (c *Config) Root() string {
	return c.job.Root
}

func (c *Config) Options() *Options {
	return c.options
}

func (c *Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.options.LogLevel)
	return level
}
