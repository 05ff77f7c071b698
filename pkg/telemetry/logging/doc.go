// Package logging builds the cleaner's slog logger.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON, text and console output
//   - An optional log file written alongside stderr
//   - Redaction of credentials (connection string passwords, password=
//     keywords, bearer tokens, S3 access keys) in messages and fields
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Redact: true,
//	    File:   "/var/log/cleaner.log",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("Connecting", "uri", "postgres://app:secret@db/app")
//	// uri=postgres://app:***@db/app
package logging
