package config

import (
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	// Run defaults
	DefaultDryRun              = true
	DefaultAutoDiscoverRelated = true
	DefaultStopOnError         = true
	DefaultBatchPause          = 200 * time.Millisecond

	// Database defaults
	DefaultDriver               = "pgx"
	DefaultMaxOpenConns         = 4
	DefaultMaxIdleConns         = 2
	DefaultConnectTimeout       = 15 * time.Second
	DefaultSQLiteMaxConnections = 1

	// Table defaults
	DefaultExpireDays       = 45
	DefaultBatchSize        = 1000
	DefaultArchivePath      = "./archive"
	DefaultExcludeCascadeFK = true

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Metrics defaults
	DefaultMetricsListenAddress = "127.0.0.1:9464"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "cleaner"
	DefaultMetricsJob           = "cleaner"

	// Archive defaults
	DefaultArchiveFormat = "csv"

	// DefaultConfigPath is used when neither --config nor DB_CLEANER_CONFIG is set.
	DefaultConfigPath = "./config/config.yaml"
)

// ApplyDefaults fills zero-valued fields with their defaults.
// Fields explicitly set in the file are left untouched.
func ApplyDefaults(cfg *Config) {
	if cfg.Database.URI == "" {
		cfg.Database.URI = cfg.DBURI
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDriver
	}
	if cfg.Database.ConnectTimeout == 0 {
		cfg.Database.ConnectTimeout = DefaultConnectTimeout
	}
	if strings.HasPrefix(cfg.Database.Driver, "sqlite") {
		// SQLite only supports a single writer.
		if cfg.Database.MaxOpenConns == 0 {
			cfg.Database.MaxOpenConns = DefaultSQLiteMaxConnections
		}
		if cfg.Database.MaxIdleConns == 0 {
			cfg.Database.MaxIdleConns = DefaultSQLiteMaxConnections
		}
	} else {
		if cfg.Database.MaxOpenConns == 0 {
			cfg.Database.MaxOpenConns = DefaultMaxOpenConns
		}
		if cfg.Database.MaxIdleConns == 0 {
			cfg.Database.MaxIdleConns = DefaultMaxIdleConns
		}
	}

	if cfg.BatchPause == 0 {
		cfg.BatchPause = DefaultBatchPause
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = cfg.LogFile
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}

	if cfg.Archive.Format == "" {
		cfg.Archive.Format = DefaultArchiveFormat
	}

	for i := range cfg.Tables {
		applyTableDefaults(&cfg.Tables[i])
	}
}

func applyTableDefaults(t *TableConfig) {
	if t.ExpireDays == 0 {
		t.ExpireDays = DefaultExpireDays
	}
	if t.BatchSize == 0 {
		t.BatchSize = DefaultBatchSize
	}
	if t.Archive && t.ArchivePath == "" {
		t.ArchivePath = DefaultArchivePath
	}
}
