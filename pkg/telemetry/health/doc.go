// Package health serves the probes of the long-running schedule mode.
//
//   - GET /health: always 200, with the last run and the number of
//     consecutive failed runs
//   - GET /ready: 503 when the database does not answer a ping or the
//     scheduler has stopped
//   - GET /version: build information
//
// Usage:
//
//	checker := health.New(db, 5*time.Second)
//	checker.TrackSchedule(sched)
//	health.Register(mux, checker, health.BuildInfo{Version: version})
//
//	summary, err := c.Run(ctx, tables)
//	checker.RecordRun(summary, err)
package health
