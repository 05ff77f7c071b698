// Package archive writes deleted rows to durable storage before the batch
// transaction that removed them is forgotten.
//
// Sinks implement cleaner.RowSink and receive one RowBatch per table per
// batch, only after the batch has committed. Two encodings are supported:
//
//   - csv: RFC 4180 with an optional header row of column names
//   - jsonl: one JSON object per row keyed by column name
//
// FileSink writes one file per batch below a local directory. S3Sink
// uploads the same body to an S3-compatible bucket with minio-go. ForPath
// picks the sink from an archive_path value ("s3://bucket/prefix" or a
// local directory).
package archive
