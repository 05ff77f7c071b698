// Package metrics exposes cleanup progress as Prometheus metrics.
//
// The Collector implements cleaner.Recorder and is handed to the cleaner
// with WithRecorder. Metrics are served over HTTP in schedule mode (Serve)
// and pushed to a Pushgateway after one-shot runs (Push).
//
// # Metrics
//
//	cleaner_batches_total{table,mode,result}
//	cleaner_batch_duration_seconds{table,mode}
//	cleaner_rows_total{table,mode}
//	cleaner_cycles_total{table}
//	cleaner_runs_total{result}
//	cleaner_last_run_timestamp_seconds
//	cleaner_last_run_duration_seconds
//	cleaner_last_success_timestamp_seconds
//
// mode is "live" or "dry_run"; a batch result is "ok", "error" or
// "timeout". Table labels beyond 1000 distinct tables collapse into
// "other".
package metrics
