// Package logging provides structured logging for tasklock.
//
// It wraps Go's log/slog to write JSON lines, one per lock event, so the
// history of acquisitions, contention, stale recoveries and releases across
// scheduled jobs can be reconstructed after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/tasklock", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithTask("TASK-001").WithHolder("backend-dev").Info("lock acquired")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"lock acquired","task_id":"TASK-001","locked_by":"backend-dev"}
//
// An empty directory sends logs to stderr. Tests use [NopLogger].
//
// # Log Rotation
//
// The log file is rotated by size. Rotated files are named tasklock.log.1,
// tasklock.log.2, etc., where .1 is the most recent backup; with compression
// enabled they become tasklock.log.1.gz and so on.
//
// # Reading History
//
// [ReadEntries] loads the active log and its uncompressed backups, [FilterLogs]
// narrows them by task, holder, level or time, and [WriteEntries] renders them
// as text, JSON or CSV.
//
// All types in this package are safe for concurrent use.
package logging
