package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateAuth(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri is required when store.backend is \"mongo\" (or set PRESSLINE_MONGO_URI)")
		}
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want sqlite or mongo)", c.Store.Backend)
	}
	if c.Store.TimeoutSeconds < 0 {
		return errors.New("store.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.ReassignAttempts < 1 {
		return errors.New("queue.reassign_attempts must be at least 1")
	}
	if c.Queue.ReassignBackoffMS < 0 {
		return errors.New("queue.reassign_backoff_ms must not be negative")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.TokenSecret != "" && len(c.Auth.TokenSecret) < 16 {
		return errors.New("auth.token_secret must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
