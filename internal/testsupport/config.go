package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pressline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp data directory per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Queue.ReassignBackoffMS = 1
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTokenSecret sets the bearer token signing secret.
func WithTokenSecret(secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.TokenSecret = secret
	}
}

// WithBasicAuth toggles HTTP basic authentication.
func WithBasicAuth(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Auth.AllowBasic = enabled
	}
}

// WithReassignOnStatusChange toggles queue renumbering on status edits.
func WithReassignOnStatusChange(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.ReassignOnStatusChange = enabled
	}
}

// WithMongo points the config at a MongoDB server and a per-test database.
func WithMongo(uri, database string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.BackendMongo
		b.cfg.Store.MongoURI = uri
		b.cfg.Store.MongoDatabase = database
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WriteConfig encodes cfg as TOML under the config's base directory and
// returns the file path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "pressline.toml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
