package config

const (
	defaultDataDir               = "~/.local/share/pressline"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultStoreBackend          = BackendSQLite
	defaultSQLiteFile            = "pressline.db"
	defaultMongoDatabase         = "pressline"
	defaultStoreTimeoutSeconds   = 10
	defaultReassignAttempts      = 3
	defaultReassignBackoffMillis = 50
	defaultTokenIssuer           = "pressline"
	defaultMetricsPath           = "/metrics"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			Backend:        defaultStoreBackend,
			SQLiteFile:     defaultSQLiteFile,
			MongoDatabase:  defaultMongoDatabase,
			TimeoutSeconds: defaultStoreTimeoutSeconds,
		},
		Queue: Queue{
			ReassignAttempts:  defaultReassignAttempts,
			ReassignBackoffMS: defaultReassignBackoffMillis,
		},
		Auth: Auth{
			TokenIssuer: defaultTokenIssuer,
			AllowBasic:  true,
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
