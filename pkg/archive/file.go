package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/cleaner/pkg/cleaner"
)

// FileSink writes each batch to its own file below Dir.
type FileSink struct {
	Dir     string
	Encoder Encoder

	now func() time.Time
}

// NewFileSink creates a sink writing to dir.
func NewFileSink(dir string, enc Encoder) *FileSink {
	return &FileSink{Dir: dir, Encoder: enc, now: time.Now}
}

// WriteRows writes the batch to a new file. The file is written under a
// temporary name and renamed once complete.
func (s *FileSink) WriteRows(ctx context.Context, batch cleaner.RowBatch) error {
	if len(batch.Rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	data, err := s.Encoder.Bytes(batch)
	if err != nil {
		return fmt.Errorf("failed to encode %s rows: %w", batch.Table, err)
	}

	path := filepath.Join(s.Dir, objectName(batch, s.now(), s.Encoder.Extension()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize archive file: %w", err)
	}
	return nil
}
