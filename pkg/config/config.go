package config

import "time"

// Config is the root configuration structure for the cleaner.
// It describes the database to connect to, the global skip rules and the
// list of root tables to retire rows from.
type Config struct {
	// DBURI is the legacy top-level connection string. It is folded into
	// Database.URI by ApplyDefaults when Database.URI is empty.
	DBURI string `yaml:"db_uri"`

	// Database contains the connection settings.
	Database DatabaseConfig `yaml:"database"`

	// DryRun counts the rows that would be deleted without deleting them.
	// Default: true
	DryRun *bool `yaml:"dry_run"`

	// AutoDiscoverRelated enables foreign-key discovery for every table
	// that does not override it.
	// Default: true
	AutoDiscoverRelated *bool `yaml:"auto_discover_related"`

	// SkipTables lists tables never touched by the cascade. Entries may be
	// short ("audit_log") or schema-qualified ("public.audit_log").
	SkipTables []string `yaml:"skip_tables"`

	// SkipColumns lists columns that disqualify a relation when they appear
	// in its child mapping, and tables whose date column is listed.
	SkipColumns []string `yaml:"skip_columns"`

	// StopOnError aborts the whole run on the first failed table.
	// Default: true
	StopOnError *bool `yaml:"stop_on_error"`

	// BatchPause is the delay between two batches of the same table.
	// Default: 200ms
	BatchPause time.Duration `yaml:"batch_pause"`

	// Schedule is a cron expression used by "cleaner schedule".
	// Example: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`

	// LogFile is the legacy top-level log file path. It is folded into
	// Logging.File by ApplyDefaults when Logging.File is empty.
	LogFile string `yaml:"log_file"`

	// Logging contains logger settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Archive contains settings shared by all archive destinations.
	Archive ArchiveConfig `yaml:"archive"`

	// Tables lists the root tables to clean, processed in order.
	Tables []TableConfig `yaml:"tables"`
}

// DatabaseConfig contains connection settings for the target database.
type DatabaseConfig struct {
	// Driver is the database/sql driver: "pgx" (default), "postgres"
	// (lib/pq), "sqlite" (modernc) or "sqlite3" (mattn, cgo).
	Driver string `yaml:"driver"`

	// URI is the connection string or SQLite file path.
	URI string `yaml:"uri"`

	// MaxOpenConns caps the connection pool.
	// Default: 4 (1 for SQLite)
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns caps idle connections.
	// Default: 2 (1 for SQLite)
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnectTimeout bounds the initial ping.
	// Default: 15s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text", "console").
	// Default: "text"
	Format string `yaml:"format"`

	// File additionally writes logs to this path when set.
	File string `yaml:"file"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`

	// Redact masks credentials in logged values.
	// Default: true
	Redact *bool `yaml:"redact"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress serves the metrics endpoint in schedule mode.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "cleaner"
	Namespace string `yaml:"namespace"`

	// PushGateway is pushed to after one-shot runs when set.
	PushGateway string `yaml:"pushgateway"`

	// Job is the pushgateway job label.
	// Default: "cleaner"
	Job string `yaml:"job"`
}

// ArchiveConfig contains settings for archive destinations.
type ArchiveConfig struct {
	// Format is the file format for local archives ("csv" or "jsonl").
	// Default: "csv"
	Format string `yaml:"format"`

	// Header writes a column-name header row to CSV archives.
	// Default: true
	Header *bool `yaml:"header"`

	// S3 configures uploads for archive paths of the form s3://bucket/prefix.
	S3 S3Config `yaml:"s3"`
}

// S3Config contains S3-compatible object storage settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// TableConfig describes one root table and how its rows are retired.
// It is loaded once and never mutated while a run is in progress.
type TableConfig struct {
	// Name is the root table, optionally schema-qualified.
	Name string `yaml:"name"`

	// Enable turns the table on or off.
	// Default: true
	Enable *bool `yaml:"enable"`

	// KeyColumns identify a row of the root table (possibly composite).
	KeyColumns []string `yaml:"key_columns"`

	// DateColumn is compared against the cutoff.
	DateColumn string `yaml:"date_column"`

	// DisableCutoff selects rows by Conditions alone.
	DisableCutoff bool `yaml:"disable_cutoff"`

	// ExpireDays is the retention period in days.
	// Default: 45
	ExpireDays int `yaml:"expire_days"`

	// BatchSize is the maximum number of root keys per transaction.
	// Default: 1000
	BatchSize int `yaml:"batch_size"`

	// MaxBatches caps the number of batches per run. 0 means unlimited.
	MaxBatches int `yaml:"max_batches"`

	// TimeOut is the statement timeout in seconds. 0 disables it.
	TimeOut int `yaml:"time_out"`

	// Archive stores full rows before they are deleted.
	Archive bool `yaml:"archive"`

	// ArchivePath is a directory or an s3://bucket/prefix destination.
	// Default: "./archive"
	ArchivePath string `yaml:"archive_path"`

	// AutoDiscoverRelated overrides the global setting for this table.
	AutoDiscoverRelated *bool `yaml:"auto_discover_related"`

	// ExcludeCascadeFK skips discovered foreign keys declared
	// ON DELETE CASCADE, which the database removes by itself.
	// Default: true
	ExcludeCascadeFK *bool `yaml:"exclude_cascade_fk"`

	// Conditions restrict which root rows are selected.
	Conditions []Condition `yaml:"conditions"`

	// Related declares relations the catalog does not know about.
	Related []RelationConfig `yaml:"related"`
}

// Condition is one entry of the condition list. Either Column/Op/Value or
// RawSQL/Params is set.
type Condition struct {
	Column string `yaml:"column"`
	Op     string `yaml:"op"`
	Value  any    `yaml:"value"`

	// RawSQL is an opaque fragment using "?" placeholders.
	RawSQL string `yaml:"raw_sql"`
	Params []any  `yaml:"params"`
}

// RelationConfig declares a parent→child relation manually.
type RelationConfig struct {
	// Name is the child table.
	Name string `yaml:"name"`

	// ParentTable defaults to the root table.
	ParentTable string `yaml:"parent_table"`

	Mapping MappingConfig `yaml:"mapping"`

	// Conditions restrict which child rows the relation reaches.
	Conditions []Condition `yaml:"conditions"`
}

// MappingConfig pairs parent columns with child columns positionally.
type MappingConfig struct {
	ParentColumns []string `yaml:"parent_columns"`
	ChildColumns  []string `yaml:"child_columns"`
}

// IsDryRun reports whether the run only counts rows.
func (c *Config) IsDryRun() bool {
	return boolOr(c.DryRun, DefaultDryRun)
}

// ShouldStopOnError reports whether a failed table aborts the run.
func (c *Config) ShouldStopOnError() bool {
	return boolOr(c.StopOnError, DefaultStopOnError)
}

// IsEnabled reports whether the table takes part in the run.
func (t *TableConfig) IsEnabled() bool {
	return boolOr(t.Enable, true)
}

// AutoDiscover resolves the per-table override against the global default.
func (t *TableConfig) AutoDiscover(global *bool) bool {
	if t.AutoDiscoverRelated != nil {
		return *t.AutoDiscoverRelated
	}
	return boolOr(global, DefaultAutoDiscoverRelated)
}

// ExcludeCascade reports whether ON DELETE CASCADE keys are skipped.
func (t *TableConfig) ExcludeCascade() bool {
	return boolOr(t.ExcludeCascadeFK, DefaultExcludeCascadeFK)
}

// Timeout returns TimeOut as a duration.
func (t *TableConfig) Timeout() time.Duration {
	return time.Duration(t.TimeOut) * time.Second
}

// ShouldRedact reports whether log values are redacted.
func (l *LoggingConfig) ShouldRedact() bool {
	return boolOr(l.Redact, true)
}

// IncludeHeader reports whether CSV archives carry a header row.
func (a *ArchiveConfig) IncludeHeader() bool {
	return boolOr(a.Header, true)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Bool returns a pointer to b, for building configs in code.
func Bool(b bool) *bool {
	return &b
}
