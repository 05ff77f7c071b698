package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "tables[0].key_columns").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateDatabase(&cfg.Database)...)

	if cfg.BatchPause < 0 {
		errs = append(errs, FieldError{
			Field:   "batch_pause",
			Message: "batch pause must be non-negative",
		})
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateArchive(&cfg.Archive)...)
	errs = append(errs, validateTables(cfg)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateDatabase validates the connection settings.
func validateDatabase(cfg *DatabaseConfig) []FieldError {
	var errs []FieldError

	if cfg.URI == "" {
		errs = append(errs, FieldError{
			Field:   "database.uri",
			Message: "connection string is required (set db_uri, database.uri or DATABASE_CONNECTION_STRING)",
		})
	}

	switch cfg.Driver {
	case "pgx", "postgres", "sqlite", "sqlite3":
	default:
		errs = append(errs, FieldError{
			Field:   "database.driver",
			Message: fmt.Sprintf("unsupported driver %q (must be pgx, postgres, sqlite or sqlite3)", cfg.Driver),
		})
	}

	if cfg.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "database.max_open_conns",
			Message: "max open connections must be non-negative",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "database.max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}
	if cfg.ConnectTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "database.connect_timeout",
			Message: "connect timeout must be non-negative",
		})
	}

	return errs
}

// validateLogging validates logger settings.
func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Level)] {
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Format)] {
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Format),
		})
	}

	return errs
}

// validateMetrics validates Prometheus settings.
func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "metrics.listen_address",
			Message: "listen address is required when metrics are enabled",
		})
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "metrics.path",
			Message: "path must start with /",
		})
	}

	return errs
}

// validateArchive validates archive settings.
func validateArchive(cfg *ArchiveConfig) []FieldError {
	var errs []FieldError

	if cfg.Format != "csv" && cfg.Format != "jsonl" {
		errs = append(errs, FieldError{
			Field:   "archive.format",
			Message: fmt.Sprintf("invalid archive format %q (must be csv or jsonl)", cfg.Format),
		})
	}

	return errs
}

// validateTables validates every table entry.
func validateTables(cfg *Config) []FieldError {
	var errs []FieldError

	if len(cfg.Tables) == 0 {
		errs = append(errs, FieldError{
			Field:   "tables",
			Message: "at least one table is required",
		})
		return errs
	}

	seen := make(map[string]int)
	for i := range cfg.Tables {
		t := &cfg.Tables[i]
		prefix := fmt.Sprintf("tables[%d]", i)

		if t.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "table name is required"})
		} else {
			key := strings.ToLower(t.Name)
			if j, dup := seen[key]; dup {
				errs = append(errs, FieldError{
					Field:   prefix + ".name",
					Message: fmt.Sprintf("duplicate table %q (also tables[%d])", t.Name, j),
				})
			}
			seen[key] = i
		}

		if len(t.KeyColumns) == 0 {
			errs = append(errs, FieldError{Field: prefix + ".key_columns", Message: "at least one key column is required"})
		}
		for j, col := range t.KeyColumns {
			if strings.TrimSpace(col) == "" {
				errs = append(errs, FieldError{Field: fmt.Sprintf("%s.key_columns[%d]", prefix, j), Message: "key column must not be empty"})
			}
		}

		if !t.DisableCutoff && t.DateColumn == "" {
			errs = append(errs, FieldError{Field: prefix + ".date_column", Message: "date column is required unless disable_cutoff is set"})
		}
		if t.DisableCutoff && len(t.Conditions) == 0 {
			errs = append(errs, FieldError{Field: prefix + ".conditions", Message: "conditions are required when disable_cutoff is set"})
		}
		if t.ExpireDays < 0 {
			errs = append(errs, FieldError{Field: prefix + ".expire_days", Message: "expire days must be non-negative"})
		}
		if t.BatchSize <= 0 {
			errs = append(errs, FieldError{Field: prefix + ".batch_size", Message: "batch size must be positive"})
		}
		if t.MaxBatches < 0 {
			errs = append(errs, FieldError{Field: prefix + ".max_batches", Message: "max batches must be non-negative"})
		}
		if t.TimeOut < 0 {
			errs = append(errs, FieldError{Field: prefix + ".time_out", Message: "timeout must be non-negative"})
		}
		if t.Archive && strings.HasPrefix(t.ArchivePath, "s3://") && cfg.Archive.S3.Endpoint == "" {
			errs = append(errs, FieldError{Field: "archive.s3.endpoint", Message: fmt.Sprintf("endpoint is required for %s archive path %q", prefix, t.ArchivePath)})
		}

		errs = append(errs, validateConditions(prefix+".conditions", t.Conditions)...)

		for j := range t.Related {
			errs = append(errs, validateRelation(fmt.Sprintf("%s.related[%d]", prefix, j), &t.Related[j])...)
		}
	}

	return errs
}

// validateConditions checks the shape of each condition. Operators are
// checked when the conditions are compiled.
func validateConditions(prefix string, conds []Condition) []FieldError {
	var errs []FieldError

	for i, c := range conds {
		field := fmt.Sprintf("%s[%d]", prefix, i)
		switch {
		case c.RawSQL != "" && c.Column != "":
			errs = append(errs, FieldError{Field: field, Message: "column and raw_sql are mutually exclusive"})
		case c.RawSQL != "":
			if n := strings.Count(c.RawSQL, "?"); n != len(c.Params) {
				errs = append(errs, FieldError{
					Field:   field + ".params",
					Message: fmt.Sprintf("raw_sql has %d placeholders but %d params", n, len(c.Params)),
				})
			}
		case c.Column == "":
			errs = append(errs, FieldError{Field: field, Message: "either column or raw_sql is required"})
		case c.Op == "":
			errs = append(errs, FieldError{Field: field + ".op", Message: "operator is required"})
		}
	}

	return errs
}

// validateRelation validates a manual relation.
func validateRelation(prefix string, r *RelationConfig) []FieldError {
	var errs []FieldError

	if r.Name == "" {
		errs = append(errs, FieldError{Field: prefix + ".name", Message: "child table name is required"})
	}
	if len(r.Mapping.ParentColumns) == 0 {
		errs = append(errs, FieldError{Field: prefix + ".mapping.parent_columns", Message: "at least one parent column is required"})
	}
	if len(r.Mapping.ParentColumns) != len(r.Mapping.ChildColumns) {
		errs = append(errs, FieldError{
			Field: prefix + ".mapping",
			Message: fmt.Sprintf("parent_columns (%d) and child_columns (%d) must have the same length",
				len(r.Mapping.ParentColumns), len(r.Mapping.ChildColumns)),
		})
	}

	errs = append(errs, validateConditions(prefix+".conditions", r.Conditions)...)

	return errs
}
