package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/di"
	"github.com/listenupapp/enrichd/internal/di/providers"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/service"
)

type globalFlags struct {
	dataPath     string
	envFile      string
	cacheBackend string
	logLevel     string
	json         bool
}

// configArgs turns the global flags into arguments for config.Load. Empty
// flags are left out so environment variables still apply.
func (f *globalFlags) configArgs() []string {
	args := []string{"-env-file", f.envFile}
	if f.dataPath != "" {
		args = append(args, "-data-path", f.dataPath)
	}
	if f.cacheBackend != "" {
		args = append(args, "-cache-backend", f.cacheBackend)
	}
	if f.logLevel != "" {
		args = append(args, "-log-level", f.logLevel)
	}
	return args
}

// commandContext lazily builds the service container shared by all
// subcommands. The HTTP server and background workers are never started.
type commandContext struct {
	flags *globalFlags
	logw  io.Writer

	once     sync.Once
	injector *do.RootScope
	err      error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) container(stderr io.Writer) (*do.RootScope, error) {
	c.once.Do(func() {
		cfg, err := config.Load(c.flags.configArgs())
		if err != nil {
			c.err = fmt.Errorf("load config: %w", err)
			return
		}

		injector := di.NewContainer()
		do.OverrideValue(injector, cfg)
		do.OverrideValue(injector, logger.New(logger.Config{
			Writer:      stderr,
			Level:       logger.ParseLevel(cfg.Logger.Level),
			Environment: cfg.App.Environment,
		}))
		c.injector = injector
	})
	return c.injector, c.err
}

func (c *commandContext) enrichment(stderr io.Writer) (*service.EnrichmentService, error) {
	injector, err := c.container(stderr)
	if err != nil {
		return nil, err
	}
	handle, err := do.Invoke[*providers.EnrichmentServiceHandle](injector)
	if err != nil {
		return nil, err
	}
	return handle.EnrichmentService, nil
}

func (c *commandContext) cache(stderr io.Writer) (*service.CacheService, error) {
	injector, err := c.container(stderr)
	if err != nil {
		return nil, err
	}
	return do.Invoke[*service.CacheService](injector)
}

func (c *commandContext) library(stderr io.Writer) (*service.LibraryService, error) {
	injector, err := c.container(stderr)
	if err != nil {
		return nil, err
	}
	return do.Invoke[*service.LibraryService](injector)
}

// close shuts down whatever the container started, stores included.
func (c *commandContext) close() error {
	if c.injector == nil {
		return nil
	}
	if err := di.Shutdown(c.injector); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
