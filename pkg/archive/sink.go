package archive

import (
	"strings"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/config"
)

// ForPath returns the sink for an archive path: an S3 sink for
// "s3://bucket/prefix", a file sink otherwise.
func ForPath(archivePath string, cfg config.ArchiveConfig) (cleaner.RowSink, error) {
	enc := Encoder{Format: cfg.Format, Header: cfg.IncludeHeader()}
	if strings.HasPrefix(archivePath, "s3://") {
		return NewS3Sink(archivePath, cfg.S3, enc)
	}
	return NewFileSink(archivePath, enc), nil
}

// Factory binds ForPath to cfg for use as a cleaner.SinkFactory.
func Factory(cfg config.ArchiveConfig) cleaner.SinkFactory {
	return func(archivePath string) (cleaner.RowSink, error) {
		return ForPath(archivePath, cfg)
	}
}
