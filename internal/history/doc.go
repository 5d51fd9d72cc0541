// Package history keeps a SQLite ledger of check runs.
//
// Each finished run is recorded with its run ID, job file, worker settings
// and outcome counts so operators can see how a collection's health changes
// over time. The ledger is advisory: the job file stays the source of truth
// for per-file status.
package history
