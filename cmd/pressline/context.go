package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pressline/internal/config"
	"pressline/internal/jobs"
	"pressline/internal/logging"
	"pressline/internal/storeaccess"
)

type commandContext struct {
	configFlag *string
	asFlag     *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, asFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		asFlag:     asFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// withStack opens the record store for the duration of fn. Command logs go to
// stderr at warn level unless the config asks for debug.
func (c *commandContext) withStack(cmd *cobra.Command, fn func(context.Context, *storeaccess.Stack) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	level := "warn"
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stack, err := storeaccess.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(ctx, stack)
}

// actor resolves --as against the user directory.
func (c *commandContext) actor(ctx context.Context, stack *storeaccess.Stack) (jobs.Actor, error) {
	employeeID := ""
	if c.asFlag != nil {
		employeeID = strings.TrimSpace(*c.asFlag)
	}
	if employeeID == "" {
		return jobs.Actor{}, errors.New("this command changes jobs; pass --as <employee id>")
	}
	user, err := stack.Users.Lookup(ctx, employeeID)
	if err != nil {
		return jobs.Actor{}, err
	}
	if user == nil {
		return jobs.Actor{}, fmt.Errorf("no user with employee id %q (register one with `pressline users add`)", employeeID)
	}
	return user.Actor(), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
