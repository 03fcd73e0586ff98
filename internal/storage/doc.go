// Package storage persists the delivery watermark between runs.
//
// Drivers:
//   - "file": one line in a file under the user's home directory (default)
//   - "sqlite": a single-row table in a SQLite database
//   - "memory": process-local, for tests and dry runs
//
// Stores assume one run at a time; there is no locking across processes.
package storage
