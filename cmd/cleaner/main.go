// Cleaner retires expired rows from a relational database without breaking
// referential integrity.
//
// For every configured root table it selects expired rows in keyset
// batches, walks the foreign-key graph depth first and deletes (or, in dry
// run, counts) dependent rows before their parents, one transaction per
// batch. Deleted rows can be archived to local files or S3-compatible
// object storage once the batch has committed.
//
// Usage:
//
//	# Count what would be deleted (dry_run defaults to true)
//	cleaner run --config cleaner.yaml
//
//	# Delete for real, one table only
//	cleaner run --live --table public.alert
//
//	# Show the relation tree of every table
//	cleaner plan
//
//	# Check the configuration and the catalog
//	cleaner validate --connect
//
//	# Run on the configured cron schedule
//	cleaner schedule --watch
package main

func main() {
	Execute()
}
