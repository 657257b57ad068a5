package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeAuth()
	c.normalizeMetrics()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	c.Store.SQLiteFile = strings.TrimSpace(c.Store.SQLiteFile)
	if c.Store.SQLiteFile == "" {
		c.Store.SQLiteFile = defaultSQLiteFile
	}
	if strings.HasPrefix(c.Store.SQLiteFile, "~") {
		expanded, err := expandPath(c.Store.SQLiteFile)
		if err != nil {
			return fmt.Errorf("store.sqlite_file: %w", err)
		}
		c.Store.SQLiteFile = expanded
	}
	if value, ok := os.LookupEnv("PRESSLINE_MONGO_URI"); ok && strings.TrimSpace(value) != "" {
		c.Store.MongoURI = value
	}
	c.Store.MongoURI = strings.TrimSpace(c.Store.MongoURI)
	c.Store.MongoDatabase = strings.TrimSpace(c.Store.MongoDatabase)
	if c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = defaultMongoDatabase
	}
	if c.Store.TimeoutSeconds == 0 {
		c.Store.TimeoutSeconds = defaultStoreTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.ReassignAttempts == 0 {
		c.Queue.ReassignAttempts = defaultReassignAttempts
	}
}

func (c *Config) normalizeAuth() {
	if value, ok := os.LookupEnv("PRESSLINE_TOKEN_SECRET"); ok && value != "" {
		c.Auth.TokenSecret = value
	}
	c.Auth.TokenIssuer = strings.TrimSpace(c.Auth.TokenIssuer)
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
