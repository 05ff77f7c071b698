package archive

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/cleaner/pkg/cleaner"
)

// Supported encodings.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Encoder renders a row batch.
type Encoder struct {
	Format string

	// Header includes a header row with column names (csv only).
	Header bool
}

// Extension returns the file extension for the encoding.
func (e Encoder) Extension() string {
	if e.Format == FormatJSONL {
		return "jsonl"
	}
	return "csv"
}

// ContentType returns the MIME type for the encoding.
func (e Encoder) ContentType() string {
	if e.Format == FormatJSONL {
		return "application/x-ndjson"
	}
	return "text/csv"
}

// Encode writes the batch to w.
func (e Encoder) Encode(w io.Writer, batch cleaner.RowBatch) error {
	switch e.Format {
	case FormatJSONL:
		return e.encodeJSONL(w, batch)
	case FormatCSV, "":
		return e.encodeCSV(w, batch)
	default:
		return fmt.Errorf("unsupported archive format %q", e.Format)
	}
}

// Bytes encodes the batch into memory.
func (e Encoder) Bytes(batch cleaner.RowBatch) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, batch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e Encoder) encodeCSV(w io.Writer, batch cleaner.RowBatch) error {
	writer := csv.NewWriter(w)

	if e.Header {
		if err := writer.Write(batch.Columns); err != nil {
			return err
		}
	}

	record := make([]string, len(batch.Columns))
	for _, row := range batch.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e Encoder) encodeJSONL(w io.Writer, batch cleaner.RowBatch) error {
	enc := json.NewEncoder(w)
	for _, row := range batch.Rows {
		obj := make(map[string]any, len(batch.Columns))
		for i, col := range batch.Columns {
			if i < len(row) {
				obj[col] = jsonValue(row[i])
			}
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return nil
}

// formatValue renders a driver value as CSV text. NULL becomes the empty
// string.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return x
	}
}

// objectName builds "<schema>_<table>_<timestamp>_<run>_<seq>.<ext>".
func objectName(batch cleaner.RowBatch, ts time.Time, ext string) string {
	table := strings.ReplaceAll(batch.Table, ".", "_")
	run := batch.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	return fmt.Sprintf("%s_%s_%s_%06d.%s", table, ts.UTC().Format("20060102T150405Z"), run, batch.Sequence, ext)
}
