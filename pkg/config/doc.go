// Package config provides configuration management for the database cleaner.
//
// This package handles loading, validating, and reloading configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// The file path comes from --config, then DB_CLEANER_CONFIG, then
// ./config/config.yaml (see ResolvePath).
//
// # Environment Variable Overrides
//
//   - DATABASE_CONNECTION_STRING or DB_URI overrides database.uri
//   - DRY_RUN overrides dry_run
//   - EXPIRY_DAYS overrides expire_days of every table
//   - ARCHIVE overrides archive of every table
//   - CLEANER_DATABASE_DRIVER, CLEANER_SCHEDULE, CLEANER_LOG_LEVEL,
//     CLEANER_LOG_FORMAT, CLEANER_LOG_FILE and CLEANER_METRICS_PUSHGATEWAY
//     override the matching fields
//
// Environment variables always take precedence over file-based configuration.
//
// # Validation
//
// Validation errors include field paths and are reported together:
//
//	configuration validation failed with 2 errors:
//	  - tables[0].key_columns: at least one key column is required
//	  - tables[1].related[0].mapping: parent_columns (2) and child_columns (1) must have the same length
//
// # Example Configuration
//
//	db_uri: "postgres://cleaner@localhost:5432/app"
//	dry_run: false
//	skip_tables: ["audit_log"]
//
//	tables:
//	  - name: alert
//	    key_columns: [id]
//	    date_column: created_at
//	    expire_days: 30
//	    batch_size: 500
//	    archive: true
//	    conditions:
//	      - column: status
//	        op: IN
//	        value: [resolved, closed]
//	    related:
//	      - name: alert_note
//	        mapping:
//	          parent_columns: [id]
//	          child_columns: [alert_id]
//
// # Reloading
//
// Store keeps the active configuration and Watcher reloads it when the file
// changes. A failed reload leaves the previous configuration in place.
package config
